package forecast

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// BuildWindow extracts the last size closes as a size x 1 column, oldest first.
// Calendar gaps are not filled; the most recent available bars are used as-is.
func BuildWindow(series models.PriceSeries, size int) (models.InputWindow, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if series.Len() < size {
		return nil, &models.HistoryError{Got: series.Len(), Need: size}
	}
	tail := series[series.Len()-size:]
	w := make(models.InputWindow, size)
	for i, b := range tail {
		w[i] = []float64{b.Close}
	}
	return w, nil
}
