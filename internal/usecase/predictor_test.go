package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/report"
)

type constModel struct {
	out   float64
	calls atomic.Int32
}

func (m *constModel) InputSteps() int    { return models.WindowSize }
func (m *constModel) InputFeatures() int { return 1 }
func (m *constModel) Forward(w models.InputWindow) ([]float64, error) {
	m.calls.Add(1)
	return []float64{m.out}, nil
}

type fakeRegistry struct {
	known   map[string]bool
	pair    *domsvc.ArtifactPair
	loadErr error
	loads   atomic.Int32
}

func (r *fakeRegistry) Stat(instrument string) (domrepo.ArtifactRef, error) {
	if !r.known[instrument] {
		return domrepo.ArtifactRef{}, fmt.Errorf("model for %s not available: %w", instrument, models.ErrModelNotFound)
	}
	return domrepo.ArtifactRef{Instrument: instrument, Key: instrument}, nil
}

func (r *fakeRegistry) Load(_ context.Context, ref domrepo.ArtifactRef) (*domsvc.ArtifactPair, error) {
	r.loads.Add(1)
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	p := *r.pair
	p.Instrument = ref.Instrument
	return &p, nil
}

func (r *fakeRegistry) List() ([]models.InstrumentInfo, error) {
	var out []models.InstrumentInfo
	for id := range r.known {
		out = append(out, models.InstrumentInfo{Ticker: id, Key: id, Currency: report.CurrencyFor(id)})
	}
	return out, nil
}

type fakeMarket struct {
	series models.PriceSeries
	err    error
	calls  atomic.Int32
}

func (m *fakeMarket) FetchHistory(context.Context, string, models.Lookback) (models.PriceSeries, error) {
	m.calls.Add(1)
	return m.series, m.err
}

type recordingMetrics struct {
	mu          sync.Mutex
	predictions []string
	errs        []string
	stages      map[string]int
	forecasts   map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{stages: map[string]int{}, forecasts: map[string]float64{}}
}

func (m *recordingMetrics) RecordPrediction(instrument, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, instrument+":"+outcome)
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, kind)
}

func (m *recordingMetrics) RecordForecast(instrument string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts[instrument] = price
}

func (m *recordingMetrics) RecordLatency(stage string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

func tradingDays(n int, last time.Time, lastClose float64) models.PriceSeries {
	out := make(models.PriceSeries, 0, n)
	d := last
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, models.PriceBar{Date: d, Close: lastClose - float64(len(out))*0.1})
		}
		d = d.AddDate(0, 0, -1)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type fixture struct {
	model    *constModel
	registry *fakeRegistry
	market   *fakeMarket
	metrics  *recordingMetrics
	p        *Predictor
}

func newFixture(t *testing.T, lo, hi float64, series models.PriceSeries) *fixture {
	t.Helper()
	scaler, err := forecast.NewMinMaxScaler([]float64{lo}, []float64{hi}, 0, 1)
	require.NoError(t, err)
	f := &fixture{
		model:   &constModel{out: 0.62},
		market:  &fakeMarket{series: series},
		metrics: newRecordingMetrics(),
	}
	f.registry = &fakeRegistry{
		known: map[string]bool{"AAPL": true, "BBCA.JK": true},
		pair:  &domsvc.ArtifactPair{Model: f.model, Scaler: scaler},
	}
	f.p = NewPredictor(f.registry, f.market, forecast.NewEngine(), report.NewAssembler(), f.metrics, nil)
	return f
}

func TestPredict_USDScenario(t *testing.T) {
	last := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, 89.2, 189.2, tradingDays(125, last, 150.00))

	resp, err := f.p.Predict(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, "USD", resp.Currency)
	assert.InDelta(t, 151.20, resp.PredictionPrice, 1e-9)
	assert.Equal(t, resp.PredictionPrice, resp.RawPrice)
	assert.Equal(t, "USD 151.20", resp.PredictionFormatted)
	assert.Equal(t, "USD 150.00", resp.LastPriceFormatted)
	assert.Equal(t, "2024-06-15", resp.NextDate)
	assert.Len(t, resp.Dates, 125)
	assert.Len(t, resp.HistoryPrices, 125)
	assert.Equal(t, "2024-06-14", resp.Dates[124])

	assert.Equal(t, int32(1), f.model.calls.Load())
	assert.Equal(t, []string{"AAPL:ok"}, f.metrics.predictions)
	assert.Empty(t, f.metrics.errs)
	assert.InDelta(t, 151.20, f.metrics.forecasts["AAPL"], 1e-9)
	for _, s := range []string{StageResolve, StageFetch, StageWindow, StageLoad, StageScale, StageInfer, StageInverse, StageAssemble} {
		assert.Equal(t, 1, f.metrics.stages[s], s)
	}
}

func TestPredict_IDRScenario(t *testing.T) {
	last := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, 8000, 11000, tradingDays(120, last, 9875))

	resp, err := f.p.Predict(context.Background(), "BBCA.JK")
	require.NoError(t, err)
	assert.Equal(t, "IDR", resp.Currency)
	assert.Equal(t, "IDR 9,875.00", resp.LastPriceFormatted)
	// 0.62 * 3000 + 8000
	assert.InDelta(t, 9860.0, resp.PredictionPrice, 1e-6)
	assert.Equal(t, "IDR 9,860.00", resp.PredictionFormatted)
}

func TestPredict_UnknownInstrumentSkipsMarketData(t *testing.T) {
	f := newFixture(t, 0, 1, tradingDays(120, time.Now(), 10))

	resp, err := f.p.Predict(context.Background(), "FAKE.ZZ")
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
	assert.Contains(t, err.Error(), "model for FAKE.ZZ not available")

	assert.Equal(t, int32(0), f.market.calls.Load())
	assert.Equal(t, int32(0), f.registry.loads.Load())
	assert.Equal(t, []string{"unresolved:not_found"}, f.metrics.predictions)
	assert.Equal(t, []string{"not_found"}, f.metrics.errs)
}

func TestPredict_ShortHistoryNeverReachesInference(t *testing.T) {
	f := newFixture(t, 0, 200, tradingDays(59, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 150))

	_, err := f.p.Predict(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, models.KindInsufficientHistory, models.KindOf(err))
	assert.Contains(t, err.Error(), "got 59 bars, need 60")

	assert.Equal(t, int32(1), f.market.calls.Load())
	assert.Equal(t, int32(0), f.registry.loads.Load())
	assert.Equal(t, int32(0), f.model.calls.Load())
}

func TestPredict_MarketDataFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind models.ErrorKind
	}{
		{"unavailable", fmt.Errorf("%w: AAPL: 502", models.ErrDataUnavailable), models.KindDataUnavailable},
		{"timeout", fmt.Errorf("%w: AAPL", models.ErrUpstreamTimeout), models.KindTimeout},
		{"deadline", context.DeadlineExceeded, models.KindTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 0, 200, nil)
			f.market.err = tc.err

			_, err := f.p.Predict(context.Background(), "AAPL")
			require.Error(t, err)
			assert.Equal(t, tc.kind, models.KindOf(err))
			assert.Equal(t, int32(0), f.registry.loads.Load())
			assert.Equal(t, []string{"AAPL:" + string(tc.kind)}, f.metrics.predictions)
		})
	}
}

func TestPredict_ArtifactLoadFailure(t *testing.T) {
	f := newFixture(t, 0, 200, tradingDays(60, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 150))
	f.registry.loadErr = fmt.Errorf("%w: AAPL_scaler.json: unexpected EOF", models.ErrArtifactLoad)

	_, err := f.p.Predict(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, models.KindArtifactLoad, models.KindOf(err))
	assert.Equal(t, int32(0), f.model.calls.Load())
}

func TestPredict_InternalFailure(t *testing.T) {
	f := newFixture(t, 0, 200, tradingDays(60, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 150))
	f.registry.pair.Model = &brokenModel{}

	_, err := f.p.Predict(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, models.KindInternal, models.KindOf(err))
}

type brokenModel struct{ constModel }

func (*brokenModel) Forward(models.InputWindow) ([]float64, error) {
	return nil, errors.New("non-finite output")
}

func TestPredict_ConcurrentRequestsShareOnePair(t *testing.T) {
	last := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, 89.2, 189.2, tradingDays(125, last, 150.00))

	var wg sync.WaitGroup
	results := make([]*models.PredictionResponse, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.p.Predict(context.Background(), "AAPL")
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].PredictionFormatted, r.PredictionFormatted)
		assert.Equal(t, results[0].Dates, r.Dates)
	}
	assert.Equal(t, int32(16), f.model.calls.Load())
}

func TestInstruments(t *testing.T) {
	f := newFixture(t, 0, 1, nil)
	list, err := f.p.Instruments()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
