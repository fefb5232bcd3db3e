package yahoo

import (
	"fmt"
	"math"

	"FinCast/internal/domain/models"
	"FinCast/pkg/util"
)

// chartResponse mirrors the parts of /v8/finance/chart the client reads.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *chartError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

type chartResult struct {
	Meta struct {
		Currency  string `json:"currency"`
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// bars converts a chart result into ascending daily bars.
// Rows without a close are dropped. When an adjusted close is present the
// whole bar is rescaled to it, so splits and dividends don't show up as jumps.
func (r *chartResult) bars() models.PriceSeries {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	out := make(models.PriceSeries, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePx, ok := at(q.Close, i)
		if !ok {
			continue
		}
		factor := 1.0
		if a, ok := at(adj, i); ok && closePx != 0 {
			factor = a / closePx
		}

		bar := models.PriceBar{
			Date:  util.UnixDate(ts, r.Meta.GMTOffset),
			Close: closePx * factor,
		}
		bar.Open = valueOr(q.Open, i, closePx) * factor
		bar.High = valueOr(q.High, i, closePx) * factor
		bar.Low = valueOr(q.Low, i, closePx) * factor
		bar.Volume = valueOr(q.Volume, i, 0)

		// Yahoo appends an intraday row that can share a date with the last daily bar.
		if n := len(out); n > 0 && !bar.Date.After(out[n-1].Date) {
			if bar.Date.Equal(out[n-1].Date) {
				out[n-1] = bar
			}
			continue
		}
		out = append(out, bar)
	}
	return out
}

func at(xs []*float64, i int) (float64, bool) {
	if i >= len(xs) || xs[i] == nil || math.IsNaN(*xs[i]) || math.IsInf(*xs[i], 0) {
		return 0, false
	}
	return *xs[i], true
}

func valueOr(xs []*float64, i int, def float64) float64 {
	if v, ok := at(xs, i); ok {
		return v
	}
	return def
}
