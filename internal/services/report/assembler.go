package report

import (
	"fmt"

	"FinCast/internal/domain/models"
	"FinCast/pkg/util"
)

// Assembler packages history and forecast into the chart payload.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// Result computes the forecast date and currency. The next date is a naive calendar
// increment and may fall on a weekend or exchange holiday.
func (a *Assembler) Result(instrument string, series models.PriceSeries, forecast float64) (models.PredictionResult, error) {
	last, ok := series.Last()
	if !ok {
		return models.PredictionResult{}, fmt.Errorf("assemble %s: empty series", instrument)
	}
	return models.PredictionResult{
		Instrument: instrument,
		Price:      forecast,
		Date:       util.NextCalendarDay(last.Date).Format(models.DateLayout),
		Currency:   CurrencyFor(instrument),
	}, nil
}

// Assemble builds the response. Dates and prices stay parallel and end at the last bar;
// the forecast is a separate field for the consumer to splice in.
func (a *Assembler) Assemble(instrument string, series models.PriceSeries, forecast float64) (*models.PredictionResponse, error) {
	res, err := a.Result(instrument, series, forecast)
	if err != nil {
		return nil, err
	}
	last, _ := series.Last()

	dates := make([]string, series.Len())
	prices := make([]float64, series.Len())
	for i, b := range series {
		dates[i] = b.Date.Format(models.DateLayout)
		prices[i] = b.Close
	}

	return &models.PredictionResponse{
		Ticker:              instrument,
		Currency:            res.Currency,
		PredictionFormatted: FormatMoney(res.Currency, res.Price),
		LastPriceFormatted:  FormatMoney(res.Currency, last.Close),
		RawPrice:            res.Price,
		Dates:               dates,
		HistoryPrices:       prices,
		PredictionPrice:     res.Price,
		NextDate:            res.Date,
	}, nil
}
