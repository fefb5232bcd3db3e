package usecase

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/report"
	applogger "FinCast/pkg/logger"
)

// Pipeline stage names used for latency metrics and logs.
const (
	StageResolve  = "resolve"
	StageFetch    = "fetch"
	StageWindow   = "window"
	StageLoad     = "load"
	StageScale    = "scale"
	StageInfer    = "infer"
	StageInverse  = "inverse"
	StageAssemble = "assemble"
)

const (
	outcomeOK = "ok"
	// unresolvedInstrument keeps arbitrary user input out of metric labels.
	unresolvedInstrument = "unresolved"
)

// Predictor turns a ticker into a next-day closing price forecast.
type Predictor struct {
	registry  domrepo.ModelRegistry
	market    domrepo.MarketDataProvider
	engine    domsvc.InferenceEngine
	assembler *report.Assembler
	metrics   domrepo.Metrics
	l         *applogger.Logger
	lookback  models.Lookback
	window    int
}

func NewPredictor(
	registry domrepo.ModelRegistry,
	market domrepo.MarketDataProvider,
	engine domsvc.InferenceEngine,
	assembler *report.Assembler,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *Predictor {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Predictor{
		registry:  registry,
		market:    market,
		engine:    engine,
		assembler: assembler,
		metrics:   metrics,
		l:         l,
		lookback:  models.DefaultLookback,
		window:    models.WindowSize,
	}
}

// Predict runs the full pipeline for one instrument. Errors carry a models.ErrorKind.
//
// The artifact pair is located before any market data is requested, and only
// loaded once the window is known to be complete, so a short history never
// reaches scaling or inference.
func (p *Predictor) Predict(ctx context.Context, instrument string) (*models.PredictionResponse, error) {
	start := time.Now()
	label := unresolvedInstrument

	resp, err := p.run(ctx, instrument, &label)
	outcome := outcomeOK
	if err != nil {
		kind := models.KindOf(err)
		outcome = string(kind)
		p.metrics.RecordError(outcome)
		fields := []applogger.Field{
			applogger.String("instrument", instrument),
			applogger.String("kind", outcome),
			applogger.Duration("duration", time.Since(start)),
			applogger.Error(err),
		}
		if kind == models.KindInternal || kind == models.KindArtifactLoad {
			p.l.Error("prediction failed", fields...)
		} else {
			p.l.Warn("prediction failed", fields...)
		}
	} else {
		p.metrics.RecordForecast(label, resp.PredictionPrice)
		p.l.Info("prediction served",
			applogger.String("instrument", instrument),
			applogger.Float64("forecast", resp.PredictionPrice),
			applogger.String("next_date", resp.NextDate),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	p.metrics.RecordPrediction(label, outcome)
	return resp, err
}

func (p *Predictor) run(ctx context.Context, instrument string, label *string) (*models.PredictionResponse, error) {
	var ref domrepo.ArtifactRef
	if err := p.stage(StageResolve, func() (err error) {
		ref, err = p.registry.Stat(instrument)
		return err
	}); err != nil {
		return nil, err
	}
	*label = instrument

	var series models.PriceSeries
	if err := p.stage(StageFetch, func() (err error) {
		series, err = p.market.FetchHistory(ctx, instrument, p.lookback)
		return err
	}); err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", instrument, err)
	}

	var window models.InputWindow
	if err := p.stage(StageWindow, func() (err error) {
		window, err = forecast.BuildWindow(series, p.window)
		return err
	}); err != nil {
		return nil, fmt.Errorf("not enough market data for %s: %w", instrument, err)
	}

	var pair *domsvc.ArtifactPair
	if err := p.stage(StageLoad, func() (err error) {
		pair, err = p.registry.Load(ctx, ref)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load artifacts for %s: %w", instrument, err)
	}

	var scaled models.InputWindow
	if err := p.stage(StageScale, func() (err error) {
		scaled, err = pair.Scaler.Transform(window)
		return err
	}); err != nil {
		return nil, fmt.Errorf("scale window for %s: %w", instrument, err)
	}

	var normalized float64
	if err := p.stage(StageInfer, func() (err error) {
		normalized, err = p.engine.Predict(ctx, pair.Model, scaled)
		return err
	}); err != nil {
		return nil, fmt.Errorf("inference for %s: %w", instrument, err)
	}

	var price float64
	if err := p.stage(StageInverse, func() (err error) {
		price, err = pair.Scaler.InverseTransform(normalized)
		return err
	}); err != nil {
		return nil, fmt.Errorf("inverse scale for %s: %w", instrument, err)
	}

	var resp *models.PredictionResponse
	if err := p.stage(StageAssemble, func() (err error) {
		resp, err = p.assembler.Assemble(instrument, series, price)
		return err
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *Predictor) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.RecordLatency(name, time.Since(start).Seconds())
	return err
}

// Instruments lists the instruments that can currently be served.
func (p *Predictor) Instruments() ([]models.InstrumentInfo, error) {
	return p.registry.List()
}
