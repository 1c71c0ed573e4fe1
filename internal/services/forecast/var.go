package forecast

import (
	"context"
	"encoding/json"
	"fmt"

	"BrentCast/internal/domain/models"
	domsvc "BrentCast/internal/domain/service"

	"gonum.org/v1/gonum/mat"
)

// VARArtifact is a fitted vector autoregression of order Lags over len(Names)
// series. Coefs[i] is the n-by-n matrix for lag i+1 (row = equation).
// History holds at least Lags rows of observations, oldest first.
type VARArtifact struct {
	Names     []string      `json:"names"`
	Lags      int           `json:"lags"`
	Intercept []float64     `json:"intercept"`
	Coefs     [][][]float64 `json:"coefs"`
	History   [][]float64   `json:"history"`
	Target    string        `json:"target,omitempty"`
}

// VARForecaster iterates y(t+1) = c + sum_i A_i y(t+1-i) over the horizon.
type VARForecaster struct {
	names     []string
	target    int
	intercept *mat.VecDense
	coefs     []*mat.Dense
	history   []*mat.VecDense
	maxSteps  int
}

// NewVARForecaster decodes a VAR artifact. target overrides the artifact's
// target series when non-empty.
func NewVARForecaster(raw []byte, target string, maxSteps int) (*VARForecaster, error) {
	var a VARArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode var: %w", err)
	}
	if target != "" {
		a.Target = target
	}
	return newVAR(a, maxSteps)
}

func newVAR(a VARArtifact, maxSteps int) (*VARForecaster, error) {
	n := len(a.Names)
	if n == 0 {
		return nil, fmt.Errorf("var: no series names")
	}
	if a.Lags < 1 || len(a.Coefs) != a.Lags {
		return nil, fmt.Errorf("var: lags=%d but %d coefficient matrices", a.Lags, len(a.Coefs))
	}
	if len(a.History) < a.Lags {
		return nil, fmt.Errorf("var: need %d history rows, have %d", a.Lags, len(a.History))
	}

	intercept := make([]float64, n)
	if len(a.Intercept) != 0 {
		if len(a.Intercept) != n {
			return nil, fmt.Errorf("var: intercept has %d entries, want %d", len(a.Intercept), n)
		}
		copy(intercept, a.Intercept)
	}

	coefs := make([]*mat.Dense, a.Lags)
	for l, m := range a.Coefs {
		if len(m) != n {
			return nil, fmt.Errorf("var: lag %d matrix has %d rows, want %d", l+1, len(m), n)
		}
		flat := make([]float64, 0, n*n)
		for r, row := range m {
			if len(row) != n {
				return nil, fmt.Errorf("var: lag %d row %d has %d cols, want %d", l+1, r, len(row), n)
			}
			flat = append(flat, row...)
		}
		coefs[l] = mat.NewDense(n, n, flat)
	}

	tail := a.History[len(a.History)-a.Lags:]
	history := make([]*mat.VecDense, len(tail))
	for i, row := range tail {
		if len(row) != n {
			return nil, fmt.Errorf("var: history row %d has %d values, want %d", i, len(row), n)
		}
		history[i] = mat.NewVecDense(n, append([]float64(nil), row...))
	}

	target := 0
	if a.Target != "" {
		target = -1
		for i, name := range a.Names {
			if name == a.Target {
				target = i
				break
			}
		}
		if target < 0 {
			return nil, fmt.Errorf("var: target %q not among %v", a.Target, a.Names)
		}
	}

	return &VARForecaster{
		names:     a.Names,
		target:    target,
		intercept: mat.NewVecDense(n, intercept),
		coefs:     coefs,
		history:   history,
		maxSteps:  maxSteps,
	}, nil
}

func (f *VARForecaster) Kind() models.ModelKind { return models.KindVAR }

func (f *VARForecaster) Validate(params models.ForecastParams) error {
	return validateHorizon(models.KindVAR, params.Steps, f.maxSteps)
}

func (f *VARForecaster) Predict(ctx context.Context, params models.ForecastParams) (models.ForecastResult, error) {
	if err := f.Validate(params); err != nil {
		return models.ForecastResult{}, err
	}
	steps := params.Steps
	n := len(f.names)

	window := append(make([]*mat.VecDense, 0, len(f.history)+steps), f.history...)
	series := make(map[string][]float64, n)
	for _, name := range f.names {
		series[name] = make([]float64, steps)
	}

	term := mat.NewVecDense(n, nil)
	for h := 0; h < steps; h++ {
		if err := ctx.Err(); err != nil {
			return models.ForecastResult{}, err
		}
		next := mat.VecDenseCopyOf(f.intercept)
		for l, a := range f.coefs {
			term.MulVec(a, window[len(window)-1-l])
			next.AddVec(next, term)
		}
		window = append(window, next)
		for i, name := range f.names {
			series[name][h] = next.AtVec(i)
		}
	}

	values := append([]float64(nil), series[f.names[f.target]]...)
	return models.ForecastResult{Kind: models.KindVAR, Values: values, Series: series}, nil
}

var _ domsvc.Forecaster = (*VARForecaster)(nil)
