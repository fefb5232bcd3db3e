package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

// ArtifactRef locates a complete artifact pair on the registry's backing store.
type ArtifactRef struct {
	Instrument string
	Key        string
	ModelPath  string
	ScalerPath string
	ModTime    time.Time
}

// ModelRegistry maps instruments to (model, scaler) artifact pairs.
type ModelRegistry interface {
	// Stat checks both artifacts exist without loading either.
	Stat(instrument string) (ArtifactRef, error)
	// Load deserializes both artifacts or neither.
	Load(ctx context.Context, ref ArtifactRef) (*service.ArtifactPair, error)
	// List returns instruments with complete pairs.
	List() ([]models.InstrumentInfo, error)
}

// MarketDataProvider fetches daily bars. It never returns an empty series with a nil error.
type MarketDataProvider interface {
	FetchHistory(ctx context.Context, instrument string, lookback models.Lookback) (models.PriceSeries, error)
}

type Metrics interface {
	RecordPrediction(instrument, outcome string)
	RecordError(kind string)
	RecordForecast(instrument string, price float64)
	RecordLatency(stage string, seconds float64)
}
