package models

import (
	"strconv"
	"time"
)

// WindowSize is the number of trailing closes a forecasting model consumes.
const WindowSize = 60

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// PriceBar represents one daily OHLCV record.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is ordered by date ascending. Weekends and holidays are simply absent.
type PriceSeries []PriceBar

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s) }

// Closes returns the closing prices in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar and false when the series is empty.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s) == 0 {
		return PriceBar{}, false
	}
	return s[len(s)-1], true
}

// Lookback is the calendar span of history requested from a provider.
type Lookback struct {
	Months int
}

// DefaultLookback comfortably exceeds WindowSize trading days while bounding chart payloads.
var DefaultLookback = Lookback{Months: 6}

// Range renders the lookback in the "6mo" notation market-data APIs use.
func (l Lookback) Range() string {
	m := l.months()
	if m%12 == 0 {
		return strconv.Itoa(m/12) + "y"
	}
	return strconv.Itoa(m) + "mo"
}

// Since returns the start of the lookback relative to now.
func (l Lookback) Since(now time.Time) time.Time {
	return now.AddDate(0, -l.months(), 0)
}

// months treats a zero lookback as the default.
func (l Lookback) months() int {
	if l.Months <= 0 {
		return DefaultLookback.Months
	}
	return l.Months
}

// InputWindow is a steps x features matrix fed to a sequence model.
type InputWindow [][]float64

// Steps returns the number of timesteps.
func (w InputWindow) Steps() int { return len(w) }

// Features returns the width of the first row.
func (w InputWindow) Features() int {
	if len(w) == 0 {
		return 0
	}
	return len(w[0])
}
