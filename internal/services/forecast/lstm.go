package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"BrentCast/internal/domain/models"
	domsvc "BrentCast/internal/domain/service"

	"gonum.org/v1/gonum/mat"
)

// LSTMLayerWeights follows the Keras layout: Kernel is inputs x 4*units,
// Recurrent is units x 4*units, gates ordered input, forget, cell, output.
type LSTMLayerWeights struct {
	Units     int         `json:"units"`
	Kernel    [][]float64 `json:"kernel"`
	Recurrent [][]float64 `json:"recurrent"`
	Bias      []float64   `json:"bias"`
}

type DenseWeights struct {
	Kernel [][]float64 `json:"kernel"`
	Bias   []float64   `json:"bias"`
}

// LSTMArtifact describes either in-process weights (backend "native") or a
// model server endpoint (backend "remote"). Timesteps, when set, fixes the
// accepted input length.
type LSTMArtifact struct {
	Backend   string             `json:"backend"`
	Timesteps int                `json:"timesteps,omitempty"`
	Layers    []LSTMLayerWeights `json:"layers,omitempty"`
	Dense     *DenseWeights      `json:"dense,omitempty"`
	Endpoint  string             `json:"endpoint,omitempty"`
	Path      string             `json:"path,omitempty"`
}

// SequenceNetwork maps a univariate sequence in model space to the output layer.
type SequenceNetwork interface {
	Infer(ctx context.Context, sequence []float64) ([]float64, error)
	Backend() string
}

// LSTMForecaster reshapes input to (1, len, 1), runs the network and maps the
// output back to price units with the companion scaler.
type LSTMForecaster struct {
	net       SequenceNetwork
	scaler    domsvc.Scaler
	timesteps int
}

// NewLSTMForecaster decodes the artifact and pairs it with its scaler.
func NewLSTMForecaster(raw []byte, scaler domsvc.Scaler, remoteTimeout time.Duration) (*LSTMForecaster, error) {
	if scaler == nil {
		return nil, errors.New("lstm: companion scaler is required")
	}
	var a LSTMArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode lstm: %w", err)
	}

	var net SequenceNetwork
	switch a.Backend {
	case "", "native":
		n, err := newNativeNetwork(a.Layers, a.Dense)
		if err != nil {
			return nil, err
		}
		net = n
	case "remote":
		if a.Endpoint == "" {
			return nil, errors.New("lstm: remote backend needs an endpoint")
		}
		net = NewRemoteNetwork(a.Endpoint, a.Path, remoteTimeout)
	default:
		return nil, fmt.Errorf("lstm: unknown backend %q", a.Backend)
	}
	return NewLSTMWithNetwork(net, scaler, a.Timesteps), nil
}

func NewLSTMWithNetwork(net SequenceNetwork, scaler domsvc.Scaler, timesteps int) *LSTMForecaster {
	return &LSTMForecaster{net: net, scaler: scaler, timesteps: timesteps}
}

func (f *LSTMForecaster) Kind() models.ModelKind { return models.KindLSTM }

// Backend names the inference backend ("native" or "remote").
func (f *LSTMForecaster) Backend() string { return f.net.Backend() }

func (f *LSTMForecaster) Validate(params models.ForecastParams) error {
	if len(params.Series) == 0 {
		return models.InvalidParam(models.KindLSTM, "input", "input must contain at least one value")
	}
	if f.timesteps > 0 && len(params.Series) != f.timesteps {
		return models.NewForecastError(models.KindLSTM, models.ErrShape, "input",
			fmt.Errorf("model expects %d timesteps, got %d", f.timesteps, len(params.Series)))
	}
	for i, v := range params.Series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.NewForecastError(models.KindLSTM, models.ErrShape, "input",
				fmt.Errorf("element %d is not a finite number", i))
		}
	}
	return nil
}

func (f *LSTMForecaster) Predict(ctx context.Context, params models.ForecastParams) (models.ForecastResult, error) {
	if err := f.Validate(params); err != nil {
		return models.ForecastResult{}, err
	}

	seq := params.Series
	if params.Raw {
		scaled, err := f.scaler.Transform(seq)
		if err != nil {
			return models.ForecastResult{}, models.NewForecastError(models.KindLSTM, models.ErrShape, "input", err)
		}
		seq = scaled
	}

	out, err := f.net.Infer(ctx, seq)
	if err != nil {
		if ctx.Err() != nil {
			return models.ForecastResult{}, ctx.Err()
		}
		return models.ForecastResult{}, models.NewForecastError(models.KindLSTM, models.ErrInference, "", err)
	}

	values, err := f.scaler.InverseTransform(out)
	if err != nil {
		return models.ForecastResult{}, models.NewForecastError(models.KindLSTM, models.ErrInference, "", fmt.Errorf("inverse scale: %w", err))
	}
	if len(values) == 0 {
		return models.ForecastResult{}, models.NewForecastError(models.KindLSTM, models.ErrInference, "", errors.New("empty model output"))
	}
	return models.ForecastResult{Kind: models.KindLSTM, Values: values}, nil
}

type lstmLayer struct {
	units     int
	kernel    *mat.Dense // inputs x 4u
	recurrent *mat.Dense // u x 4u
	bias      *mat.VecDense
}

type nativeNetwork struct {
	layers []lstmLayer
	dense  *mat.Dense // u x out
	dbias  *mat.VecDense
}

func newNativeNetwork(layers []LSTMLayerWeights, dense *DenseWeights) (*nativeNetwork, error) {
	if len(layers) == 0 {
		return nil, errors.New("lstm: no layers")
	}
	if dense == nil {
		return nil, errors.New("lstm: missing dense output layer")
	}

	net := &nativeNetwork{layers: make([]lstmLayer, len(layers))}
	inputs := 1
	for i, l := range layers {
		if l.Units < 1 {
			return nil, fmt.Errorf("lstm: layer %d has no units", i)
		}
		k, err := denseFrom(l.Kernel, inputs, 4*l.Units)
		if err != nil {
			return nil, fmt.Errorf("lstm: layer %d kernel: %w", i, err)
		}
		r, err := denseFrom(l.Recurrent, l.Units, 4*l.Units)
		if err != nil {
			return nil, fmt.Errorf("lstm: layer %d recurrent: %w", i, err)
		}
		if len(l.Bias) != 4*l.Units {
			return nil, fmt.Errorf("lstm: layer %d bias has %d values, want %d", i, len(l.Bias), 4*l.Units)
		}
		net.layers[i] = lstmLayer{
			units:     l.Units,
			kernel:    k,
			recurrent: r,
			bias:      mat.NewVecDense(len(l.Bias), append([]float64(nil), l.Bias...)),
		}
		inputs = l.Units
	}

	if len(dense.Kernel) == 0 {
		return nil, errors.New("lstm: dense kernel is empty")
	}
	outputs := len(dense.Kernel[0])
	d, err := denseFrom(dense.Kernel, inputs, outputs)
	if err != nil {
		return nil, fmt.Errorf("lstm: dense kernel: %w", err)
	}
	if len(dense.Bias) != outputs {
		return nil, fmt.Errorf("lstm: dense bias has %d values, want %d", len(dense.Bias), outputs)
	}
	net.dense = d
	net.dbias = mat.NewVecDense(outputs, append([]float64(nil), dense.Bias...))
	return net, nil
}

func denseFrom(rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("got %d rows, want %d", len(rows), r)
	}
	flat := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d cols, want %d", i, len(row), c)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(r, c, flat), nil
}

func (n *nativeNetwork) Backend() string { return "native" }

func (n *nativeNetwork) Infer(ctx context.Context, sequence []float64) ([]float64, error) {
	seq := make([]*mat.VecDense, len(sequence))
	for i, v := range sequence {
		seq[i] = mat.NewVecDense(1, []float64{v})
	}

	for _, layer := range n.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq = layer.run(seq)
	}

	last := seq[len(seq)-1]
	out := mat.NewVecDense(n.dbias.Len(), nil)
	out.MulVec(n.dense.T(), last)
	out.AddVec(out, n.dbias)
	return out.RawVector().Data, nil
}

// run returns the hidden state at every timestep.
func (l lstmLayer) run(inputs []*mat.VecDense) []*mat.VecDense {
	u := l.units
	h := mat.NewVecDense(u, nil)
	c := make([]float64, u)
	z := mat.NewVecDense(4*u, nil)
	rec := mat.NewVecDense(4*u, nil)

	outputs := make([]*mat.VecDense, len(inputs))
	for t, x := range inputs {
		z.MulVec(l.kernel.T(), x)
		rec.MulVec(l.recurrent.T(), h)
		z.AddVec(z, rec)
		z.AddVec(z, l.bias)

		next := make([]float64, u)
		for j := 0; j < u; j++ {
			ig := sigmoid(z.AtVec(j))
			fg := sigmoid(z.AtVec(u + j))
			cc := math.Tanh(z.AtVec(2*u + j))
			og := sigmoid(z.AtVec(3*u + j))
			c[j] = fg*c[j] + ig*cc
			next[j] = og * math.Tanh(c[j])
		}
		h = mat.NewVecDense(u, next)
		outputs[t] = h
	}
	return outputs
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

var _ domsvc.Forecaster = (*LSTMForecaster)(nil)
