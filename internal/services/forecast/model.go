package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
)

// Layer kinds understood by the runtime.
const (
	LayerLSTM    = "lstm"
	LayerDense   = "dense"
	LayerDropout = "dropout"
)

type modelFile struct {
	Format     string      `json:"format"`
	InputShape []int       `json:"input_shape"`
	Layers     []layerFile `json:"layers"`
}

type layerFile struct {
	Type                string      `json:"type"`
	Units               int         `json:"units"`
	Activation          string      `json:"activation"`
	RecurrentActivation string      `json:"recurrent_activation"`
	ReturnSequences     bool        `json:"return_sequences"`
	Kernel              [][]float64 `json:"kernel"`
	RecurrentKernel     [][]float64 `json:"recurrent_kernel"`
	Bias                []float64   `json:"bias"`
}

type layer interface {
	// forward maps a steps x in sequence to steps' x out.
	forward(seq [][]float64) [][]float64
	outputWidth() int
}

// Model is a sequential stack of LSTM and Dense layers exported from a trained network.
type Model struct {
	steps    int
	features int
	layers   []layer
}

// DecodeModel reads a model artifact and checks every weight shape against the declared input.
func DecodeModel(r io.Reader) (*Model, error) {
	var f modelFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(f.InputShape) != 2 || f.InputShape[0] <= 0 || f.InputShape[1] <= 0 {
		return nil, fmt.Errorf("input_shape must be [steps, features], got %v", f.InputShape)
	}
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	m := &Model{steps: f.InputShape[0], features: f.InputShape[1]}
	width := m.features
	for i, lf := range f.Layers {
		var (
			l   layer
			err error
		)
		switch lf.Type {
		case LayerLSTM:
			l, err = newLSTM(lf, width)
		case LayerDense:
			l, err = newDense(lf, width)
		case LayerDropout:
			continue
		default:
			err = fmt.Errorf("unsupported layer type %q", lf.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, lf.Type, err)
		}
		m.layers = append(m.layers, l)
		width = l.outputWidth()
	}
	if len(m.layers) == 0 {
		return nil, fmt.Errorf("model has no computational layers")
	}
	return m, nil
}

func (m *Model) InputSteps() int    { return m.steps }
func (m *Model) InputFeatures() int { return m.features }

// Forward runs the network on one sample and returns the output of the last timestep.
func (m *Model) Forward(input models.InputWindow) ([]float64, error) {
	if input.Steps() != m.steps || input.Features() != m.features {
		return nil, fmt.Errorf("input shape (%d, %d) does not match model (%d, %d)",
			input.Steps(), input.Features(), m.steps, m.features)
	}
	seq := [][]float64(input)
	for _, l := range m.layers {
		seq = l.forward(seq)
	}
	out := seq[len(seq)-1]
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite output at %d", i)
		}
	}
	return out, nil
}

// lstm follows the Keras gate layout: kernel columns are [i | f | c | o].
type lstm struct {
	units      int
	kernel     [][]float64 // in x 4u
	recurrent  [][]float64 // u x 4u
	bias       []float64   // 4u
	act        func(float64) float64
	recAct     func(float64) float64
	returnSeqs bool
}

func newLSTM(lf layerFile, in int) (*lstm, error) {
	u := lf.Units
	if u <= 0 {
		return nil, fmt.Errorf("units must be positive")
	}
	if err := checkMatrix(lf.Kernel, in, 4*u, "kernel"); err != nil {
		return nil, err
	}
	if err := checkMatrix(lf.RecurrentKernel, u, 4*u, "recurrent_kernel"); err != nil {
		return nil, err
	}
	bias := lf.Bias
	if bias == nil {
		bias = make([]float64, 4*u)
	}
	if len(bias) != 4*u {
		return nil, fmt.Errorf("bias has %d values, want %d", len(bias), 4*u)
	}
	act, err := activation(lf.Activation, "tanh")
	if err != nil {
		return nil, err
	}
	recAct, err := activation(lf.RecurrentActivation, "sigmoid")
	if err != nil {
		return nil, err
	}
	return &lstm{
		units:      u,
		kernel:     lf.Kernel,
		recurrent:  lf.RecurrentKernel,
		bias:       bias,
		act:        act,
		recAct:     recAct,
		returnSeqs: lf.ReturnSequences,
	}, nil
}

func (l *lstm) outputWidth() int { return l.units }

func (l *lstm) forward(seq [][]float64) [][]float64 {
	u := l.units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	var out [][]float64
	if l.returnSeqs {
		out = make([][]float64, 0, len(seq))
	}
	for _, x := range seq {
		copy(z, l.bias)
		for k, xv := range x {
			row := l.kernel[k]
			for j := range z {
				z[j] += xv * row[j]
			}
		}
		for k, hv := range h {
			row := l.recurrent[k]
			for j := range z {
				z[j] += hv * row[j]
			}
		}
		next := make([]float64, u)
		for j := 0; j < u; j++ {
			ig := l.recAct(z[j])
			fg := l.recAct(z[u+j])
			cg := l.act(z[2*u+j])
			og := l.recAct(z[3*u+j])
			c[j] = fg*c[j] + ig*cg
			next[j] = og * l.act(c[j])
		}
		h = next
		if l.returnSeqs {
			out = append(out, h)
		}
	}
	if !l.returnSeqs {
		return [][]float64{h}
	}
	return out
}

type dense struct {
	units  int
	kernel [][]float64 // in x units
	bias   []float64
	act    func(float64) float64
}

func newDense(lf layerFile, in int) (*dense, error) {
	if lf.Units <= 0 {
		return nil, fmt.Errorf("units must be positive")
	}
	if err := checkMatrix(lf.Kernel, in, lf.Units, "kernel"); err != nil {
		return nil, err
	}
	bias := lf.Bias
	if bias == nil {
		bias = make([]float64, lf.Units)
	}
	if len(bias) != lf.Units {
		return nil, fmt.Errorf("bias has %d values, want %d", len(bias), lf.Units)
	}
	act, err := activation(lf.Activation, "linear")
	if err != nil {
		return nil, err
	}
	return &dense{units: lf.Units, kernel: lf.Kernel, bias: bias, act: act}, nil
}

func (d *dense) outputWidth() int { return d.units }

// forward applies the layer to every timestep, as Keras does for 3-D input.
func (d *dense) forward(seq [][]float64) [][]float64 {
	out := make([][]float64, len(seq))
	for t, x := range seq {
		y := make([]float64, d.units)
		copy(y, d.bias)
		for k, xv := range x {
			row := d.kernel[k]
			for j := range y {
				y[j] += xv * row[j]
			}
		}
		for j := range y {
			y[j] = d.act(y[j])
		}
		out[t] = y
	}
	return out
}

func activation(name, def string) (func(float64) float64, error) {
	if name == "" {
		name = def
	}
	switch name {
	case "linear":
		return func(v float64) float64 { return v }, nil
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }, nil
	case "hard_sigmoid":
		return func(v float64) float64 { return math.Max(0, math.Min(1, 0.2*v+0.5)) }, nil
	case "relu":
		return func(v float64) float64 { return math.Max(0, v) }, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

func checkMatrix(m [][]float64, rows, cols int, name string) error {
	if len(m) != rows {
		return fmt.Errorf("%s has %d rows, want %d", name, len(m), rows)
	}
	for i, r := range m {
		if len(r) != cols {
			return fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(r), cols)
		}
	}
	return nil
}

var _ domsvc.SequenceModel = (*Model)(nil)
