package forecast

import (
	"context"
	"fmt"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
)

// Engine runs single-sample, single-step inference. It holds no state between calls.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Predict feeds a (1, steps, features) sample to the model and returns its one-step output.
func (e *Engine) Predict(ctx context.Context, model domsvc.SequenceModel, window models.InputWindow) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if window.Steps() != model.InputSteps() || window.Features() != model.InputFeatures() {
		return 0, fmt.Errorf("window shape (1, %d, %d) does not match model input (1, %d, %d)",
			window.Steps(), window.Features(), model.InputSteps(), model.InputFeatures())
	}
	out, err := model.Forward(window)
	if err != nil {
		return 0, fmt.Errorf("forward pass: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("model produced %d outputs, want 1", len(out))
	}
	return out[0], nil
}

var _ domsvc.InferenceEngine = (*Engine)(nil)

// CheckCompatible verifies a model and scaler can serve the same window.
func CheckCompatible(model domsvc.SequenceModel, scaler domsvc.Scaler, windowSize int) error {
	if model.InputSteps() != windowSize {
		return fmt.Errorf("model expects %d timesteps, window is %d", model.InputSteps(), windowSize)
	}
	if scaler.Features() != model.InputFeatures() {
		return fmt.Errorf("scaler has %d features, model expects %d", scaler.Features(), model.InputFeatures())
	}
	return nil
}
