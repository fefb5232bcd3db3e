package service

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// SequenceModel is a loaded forecasting model. Implementations are read-only after load.
type SequenceModel interface {
	InputSteps() int
	InputFeatures() int
	Forward(input models.InputWindow) ([]float64, error)
}

// Scaler is a fitted, frozen normalization transform.
type Scaler interface {
	Features() int
	Transform(window models.InputWindow) (models.InputWindow, error)
	InverseTransform(v float64) (float64, error)
}

// InferenceEngine runs one forward pass for one normalized window.
type InferenceEngine interface {
	Predict(ctx context.Context, model SequenceModel, window models.InputWindow) (float64, error)
}

// ArtifactPair is the (model, scaler) tuple for one instrument. Both members are always set.
type ArtifactPair struct {
	Instrument string
	Key        string
	Model      SequenceModel
	Scaler     Scaler
	LoadedAt   time.Time
}
