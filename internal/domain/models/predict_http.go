package models

// PredictRequest is the only inbound operation: a single instrument identifier.
type PredictRequest struct {
	Ticker string `json:"ticker" form:"ticker" query:"ticker" validate:"required,max=32"`
}
