package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

const dailyBarsQuery = `
        SELECT date, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `

// barRows is the subset of *sql.Rows the scanner needs.
type barRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type barQuerier interface {
	QueryBars(ctx context.Context, query string, args ...any) (barRows, error)
}

type sqlQuerier struct{ db *sql.DB }

func (q sqlQuerier) QueryBars(ctx context.Context, query string, args ...any) (barRows, error) {
	return q.db.QueryContext(ctx, query, args...)
}

// CHMarketData implements MarketDataProvider over a ClickHouse daily bars table.
type CHMarketData struct {
	q     barQuerier
	table string
	now   func() time.Time
	l     *applogger.Logger
}

func NewCHMarketData(ch *pkgch.Client, table string) *CHMarketData {
	return newCHMarketData(sqlQuerier{db: ch.DB()}, table)
}

func newCHMarketData(q barQuerier, table string) *CHMarketData {
	if table == "" {
		table = "daily_bars"
	}
	return &CHMarketData{q: q, table: table, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHMarketData) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHMarketData) FetchHistory(ctx context.Context, instrument string, lookback models.Lookback) (models.PriceSeries, error) {
	start := time.Now()
	to := s.now().UTC()
	from := lookback.Since(to)

	rows, err := s.q.QueryBars(ctx, fmt.Sprintf(dailyBarsQuery, s.table), instrument, from, to)
	if err != nil {
		s.logError("clickhouse daily_bars query error", instrument, err)
		return nil, s.wrap(ctx, instrument, "query", err)
	}
	defer rows.Close()

	out := make(models.PriceSeries, 0, 160)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logError("clickhouse daily_bars scan error", instrument, err)
			return nil, s.wrap(ctx, instrument, "scan", err)
		}
		b.Date = util.CalendarDate(b.Date, time.UTC)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse daily_bars rows error", instrument, err)
		return nil, s.wrap(ctx, instrument, "rows", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s in %s", models.ErrDataUnavailable, instrument, s.table)
	}

	if s.l != nil {
		s.l.Info("clickhouse daily_bars ok",
			applogger.String("table", s.table),
			applogger.String("instrument", instrument),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHMarketData) wrap(ctx context.Context, instrument, stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s: %w", models.ErrUpstreamTimeout, stage, instrument, err)
	}
	return fmt.Errorf("%w: %s %s: %w", models.ErrDataUnavailable, stage, instrument, err)
}

func (s *CHMarketData) logError(msg, instrument string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", s.table),
		applogger.String("instrument", instrument),
		applogger.Error(err),
	)
}

var _ domrepo.MarketDataProvider = (*CHMarketData)(nil)
