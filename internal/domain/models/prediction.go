package models

// PredictionResult is the per-request forecast before formatting.
type PredictionResult struct {
	Instrument string
	Price      float64
	Date       string
	Currency   string
}

// PredictionResponse is the payload returned to chart consumers.
// Dates and HistoryPrices are parallel, ascending, and never include the forecast.
type PredictionResponse struct {
	Ticker              string    `json:"ticker"`
	Currency            string    `json:"currency"`
	PredictionFormatted string    `json:"prediction_formatted"`
	LastPriceFormatted  string    `json:"last_price_formatted"`
	RawPrice            float64   `json:"raw_price"`
	Dates               []string  `json:"dates"`
	HistoryPrices       []float64 `json:"history_prices"`
	PredictionPrice     float64   `json:"prediction_price"`
	NextDate            string    `json:"next_date"`
}

// InstrumentInfo describes an instrument with a complete artifact pair.
type InstrumentInfo struct {
	Ticker   string `json:"ticker"`
	Key      string `json:"key"`
	Currency string `json:"currency"`
}
