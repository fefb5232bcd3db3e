package forecast

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
)

func zeros(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func constantModelJSON(t *testing.T, steps int, out float64) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"format":      "sequential",
		"input_shape": []int{steps, 1},
		"layers": []map[string]any{
			{"type": "lstm", "units": 2, "kernel": zeros(1, 8), "recurrent_kernel": zeros(2, 8), "bias": make([]float64, 8)},
			{"type": "dropout"},
			{"type": "dense", "units": 1, "kernel": zeros(2, 1), "bias": []float64{out}},
		},
	})
	require.NoError(t, err)
	return string(b)
}

func window(n int, v float64) models.InputWindow {
	w := make(models.InputWindow, n)
	for i := range w {
		w[i] = []float64{v}
	}
	return w
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

func TestDecodeModelConstantOutput(t *testing.T) {
	m, err := DecodeModel(strings.NewReader(constantModelJSON(t, 60, 0.62)))
	require.NoError(t, err)
	assert.Equal(t, 60, m.InputSteps())
	assert.Equal(t, 1, m.InputFeatures())

	out, err := m.Forward(window(60, 0.3))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.62, out[0], 1e-12)
}

func TestLSTMSingleStepMatchesHandComputation(t *testing.T) {
	body := `{"input_shape":[1,1],"layers":[
		{"type":"lstm","units":1,"kernel":[[1,1,1,1]],"recurrent_kernel":[[0,0,0,0]],"bias":[0,0,0,0]},
		{"type":"dense","units":1,"kernel":[[1]],"bias":[0]}]}`
	m, err := DecodeModel(strings.NewReader(body))
	require.NoError(t, err)

	out, err := m.Forward(models.InputWindow{{1}})
	require.NoError(t, err)

	c := sigmoid(1) * math.Tanh(1)
	want := sigmoid(1) * math.Tanh(c)
	assert.InDelta(t, want, out[0], 1e-12)
}

func TestLSTMCarriesStateAcrossSteps(t *testing.T) {
	body := `{"input_shape":[2,1],"layers":[
		{"type":"lstm","units":1,"kernel":[[1,1,1,1]],"recurrent_kernel":[[1,1,1,1]],"bias":[0,0,0,0]}]}`
	m, err := DecodeModel(strings.NewReader(body))
	require.NoError(t, err)

	out, err := m.Forward(models.InputWindow{{1}, {0.5}})
	require.NoError(t, err)

	c1 := sigmoid(1) * math.Tanh(1)
	h1 := sigmoid(1) * math.Tanh(c1)
	z := 0.5 + h1
	c2 := sigmoid(z)*c1 + sigmoid(z)*math.Tanh(z)
	h2 := sigmoid(z) * math.Tanh(c2)
	assert.InDelta(t, h2, out[0], 1e-12)
}

func TestStackedLSTMWithReturnSequences(t *testing.T) {
	body := `{"input_shape":[3,1],"layers":[
		{"type":"lstm","units":2,"return_sequences":true,"kernel":[[0.1,0.2,0.3,0.4,0.5,0.6,0.7,0.8]],
		 "recurrent_kernel":[[0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0]],"bias":[0,0,0,0,0,0,0,0]},
		{"type":"lstm","units":1,"kernel":[[1,1,1,1],[1,1,1,1]],"recurrent_kernel":[[0,0,0,0]]},
		{"type":"dense","units":1,"activation":"linear","kernel":[[2]],"bias":[1]}]}`
	m, err := DecodeModel(strings.NewReader(body))
	require.NoError(t, err)

	out, err := m.Forward(models.InputWindow{{1}, {2}, {3}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, math.IsNaN(out[0]))
}

func TestDecodeModelRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"no input":      `{"layers":[{"type":"dense","units":1,"kernel":[[1]]}]}`,
		"no layers":     `{"input_shape":[60,1],"layers":[]}`,
		"only dropout":  `{"input_shape":[60,1],"layers":[{"type":"dropout"}]}`,
		"unknown layer": `{"input_shape":[60,1],"layers":[{"type":"conv1d","units":1}]}`,
		"kernel rows":   `{"input_shape":[60,1],"layers":[{"type":"lstm","units":1,"kernel":[[1,1,1,1],[1,1,1,1]],"recurrent_kernel":[[0,0,0,0]]}]}`,
		"bias":          `{"input_shape":[60,1],"layers":[{"type":"dense","units":1,"kernel":[[1]],"bias":[1,2]}]}`,
		"activation":    `{"input_shape":[60,1],"layers":[{"type":"dense","units":1,"kernel":[[1]],"activation":"softsign"}]}`,
		"truncated":     `{"input_shape":[60,1],"layers":[`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeModel(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestEnginePredict(t *testing.T) {
	m, err := DecodeModel(strings.NewReader(constantModelJSON(t, 60, 0.62)))
	require.NoError(t, err)

	got, err := NewEngine().Predict(context.Background(), m, window(60, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.62, got, 1e-12)
}

func TestEngineRejectsWrongShape(t *testing.T) {
	m, err := DecodeModel(strings.NewReader(constantModelJSON(t, 60, 0.62)))
	require.NoError(t, err)

	_, err = NewEngine().Predict(context.Background(), m, window(59, 0.5))
	assert.Error(t, err)
}

func TestEngineRejectsMultipleOutputs(t *testing.T) {
	body := `{"input_shape":[1,1],"layers":[{"type":"dense","units":2,"kernel":[[1,1]]}]}`
	m, err := DecodeModel(strings.NewReader(body))
	require.NoError(t, err)

	_, err = NewEngine().Predict(context.Background(), m, models.InputWindow{{1}})
	assert.ErrorContains(t, err, "2 outputs")
}

func TestEngineHonorsCancellation(t *testing.T) {
	m, err := DecodeModel(strings.NewReader(constantModelJSON(t, 60, 0.62)))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewEngine().Predict(ctx, m, window(60, 0.5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckCompatible(t *testing.T) {
	m, err := DecodeModel(strings.NewReader(constantModelJSON(t, 60, 0.62)))
	require.NoError(t, err)
	one, err := NewMinMaxScaler([]float64{0}, []float64{1}, 0, 1)
	require.NoError(t, err)
	two, err := NewMinMaxScaler([]float64{0, 0}, []float64{1, 1}, 0, 1)
	require.NoError(t, err)

	assert.NoError(t, CheckCompatible(m, one, 60))
	assert.Error(t, CheckCompatible(m, two, 60))
	assert.Error(t, CheckCompatible(m, one, 30))
}
