package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastForecast *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_predictions_total",
				Help: "Prediction requests by instrument and outcome",
			},
			[]string{"instrument", "outcome"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Pipeline errors by kind",
			},
			[]string{"kind"},
		),
		lastForecast: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_forecast",
				Help: "Last forecast closing price for an instrument",
			},
			[]string{"instrument"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordPrediction counts a finished prediction request.
func (r *Recorder) RecordPrediction(instrument, outcome string) {
	r.predictions.WithLabelValues(instrument, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordForecast records the latest forecast for an instrument.
func (r *Recorder) RecordForecast(instrument string, price float64) {
	r.lastForecast.WithLabelValues(instrument).Set(price)
}

// RecordLatency records stage latency in seconds.
func (r *Recorder) RecordLatency(stage string, seconds float64) {
	r.latency.WithLabelValues(stage).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordPrediction(string, string) {}
func (Nop) RecordError(string)              {}
func (Nop) RecordForecast(string, float64)  {}
func (Nop) RecordLatency(string, float64)   {}
