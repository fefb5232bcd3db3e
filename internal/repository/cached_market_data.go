package repository

import (
	"context"
	"errors"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

// CachedMarketData serves recently fetched series from a cache.Service.
// Cache failures are logged and fall through to the wrapped provider.
type CachedMarketData struct {
	inner  domrepo.MarketDataProvider
	cache  cache.Service
	ttl    time.Duration
	prefix string
	l      *applogger.Logger
}

func NewCachedMarketData(inner domrepo.MarketDataProvider, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedMarketData {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedMarketData{inner: inner, cache: c, ttl: ttl, prefix: "bars", l: l}
}

func (m *CachedMarketData) FetchHistory(ctx context.Context, instrument string, lookback models.Lookback) (models.PriceSeries, error) {
	key := cache.GenerateKeyWithParams(m.prefix, instrument, lookback.Range())

	var series models.PriceSeries
	err := m.cache.Get(ctx, key, &series)
	switch {
	case err == nil && len(series) > 0:
		return series, nil
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		m.l.Warn("market data cache read failed",
			applogger.String("key", key),
			applogger.Error(err),
		)
	}

	series, err = m.inner.FetchHistory(ctx, instrument, lookback)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, key, series, m.ttl); err != nil {
		m.l.Warn("market data cache write failed",
			applogger.String("key", key),
			applogger.Error(err),
		)
	}
	return series, nil
}

var _ domrepo.MarketDataProvider = (*CachedMarketData)(nil)
