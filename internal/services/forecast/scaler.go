package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
)

// scalerFile mirrors the attributes of a fitted scikit-learn MinMaxScaler.
type scalerFile struct {
	FeatureRange []float64 `json:"feature_range"`
	DataMin      []float64 `json:"data_min"`
	DataMax      []float64 `json:"data_max"`
	Scale        []float64 `json:"scale"`
	Min          []float64 `json:"min"`
	NFeaturesIn  int       `json:"n_features_in"`
}

// MinMaxScaler applies frozen per-feature min-max parameters. It is never refit.
type MinMaxScaler struct {
	scale []float64
	min   []float64
}

// NewMinMaxScaler derives scale/min from the fitted data range the way scikit-learn does.
// A zero data range is treated as 1 so constant features map to the range minimum.
func NewMinMaxScaler(dataMin, dataMax []float64, lo, hi float64) (*MinMaxScaler, error) {
	if len(dataMin) == 0 || len(dataMin) != len(dataMax) {
		return nil, fmt.Errorf("data_min/data_max length mismatch: %d vs %d", len(dataMin), len(dataMax))
	}
	if hi <= lo {
		return nil, fmt.Errorf("invalid feature range [%g, %g]", lo, hi)
	}
	s := &MinMaxScaler{scale: make([]float64, len(dataMin)), min: make([]float64, len(dataMin))}
	for i := range dataMin {
		rng := dataMax[i] - dataMin[i]
		if rng == 0 {
			rng = 1
		}
		s.scale[i] = (hi - lo) / rng
		s.min[i] = lo - dataMin[i]*s.scale[i]
	}
	return s, nil
}

// DecodeScaler reads a scaler artifact.
func DecodeScaler(r io.Reader) (*MinMaxScaler, error) {
	var f scalerFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}

	var (
		s   *MinMaxScaler
		err error
	)
	if len(f.Scale) > 0 || len(f.Min) > 0 {
		if len(f.Scale) != len(f.Min) {
			return nil, fmt.Errorf("scale/min length mismatch: %d vs %d", len(f.Scale), len(f.Min))
		}
		s = &MinMaxScaler{scale: f.Scale, min: f.Min}
	} else {
		lo, hi := 0.0, 1.0
		if len(f.FeatureRange) == 2 {
			lo, hi = f.FeatureRange[0], f.FeatureRange[1]
		}
		if s, err = NewMinMaxScaler(f.DataMin, f.DataMax, lo, hi); err != nil {
			return nil, err
		}
	}
	if f.NFeaturesIn != 0 && f.NFeaturesIn != s.Features() {
		return nil, fmt.Errorf("n_features_in %d does not match %d fitted features", f.NFeaturesIn, s.Features())
	}
	for i, v := range s.scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("scale[%d] is not usable: %v", i, v)
		}
	}
	return s, nil
}

// Features returns the number of fitted features.
func (s *MinMaxScaler) Features() int { return len(s.scale) }

// Transform returns a scaled copy; the input window is left untouched.
func (s *MinMaxScaler) Transform(w models.InputWindow) (models.InputWindow, error) {
	out := make(models.InputWindow, len(w))
	for i, row := range w {
		if len(row) != s.Features() {
			return nil, fmt.Errorf("row %d has %d features, scaler expects %d", i, len(row), s.Features())
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = v*s.scale[j] + s.min[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// InverseTransform maps a single normalized value of feature 0 back to price units.
func (s *MinMaxScaler) InverseTransform(v float64) (float64, error) {
	if s.Features() == 0 {
		return 0, fmt.Errorf("scaler has no fitted features")
	}
	return (v - s.min[0]) / s.scale[0], nil
}

var _ domsvc.Scaler = (*MinMaxScaler)(nil)
