package forecast

import (
	"context"
	"encoding/json"
	"fmt"

	"BrentCast/internal/domain/models"
	domsvc "BrentCast/internal/domain/service"
)

// ARIMAArtifact is a fitted ARIMA(p,d,q) state. History holds the tail of the
// original series (at least d+p points), Residuals the most recent in-sample
// innovations of the differenced series (at least q, newest last). Mean is the
// mean of the differenced series (zero when fitted without a constant).
type ARIMAArtifact struct {
	Order     [3]int    `json:"order"`
	Mean      float64   `json:"mean"`
	AR        []float64 `json:"ar"`
	MA        []float64 `json:"ma"`
	History   []float64 `json:"history"`
	Residuals []float64 `json:"residuals"`
}

// ARIMAForecaster produces point forecasts by recursive one-step prediction
// with future shocks set to zero, then integrating d times.
type ARIMAForecaster struct {
	d        int
	mean     float64
	ar       []float64
	ma       []float64
	diffed   []float64 // d-times differenced history
	anchors  []float64 // last value of each differencing level 0..d-1
	resid    []float64
	maxSteps int
}

func NewARIMAForecaster(raw []byte, maxSteps int) (*ARIMAForecaster, error) {
	var a ARIMAArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode arima: %w", err)
	}
	return newARIMA(a, maxSteps)
}

func newARIMA(a ARIMAArtifact, maxSteps int) (*ARIMAForecaster, error) {
	p, d, q := a.Order[0], a.Order[1], a.Order[2]
	if p < 0 || d < 0 || q < 0 {
		return nil, fmt.Errorf("arima: negative order %v", a.Order)
	}
	if len(a.AR) != p || len(a.MA) != q {
		return nil, fmt.Errorf("arima: order %v does not match %d ar / %d ma coefficients", a.Order, len(a.AR), len(a.MA))
	}
	if len(a.History) < d+max(p, 1) {
		return nil, fmt.Errorf("arima: need at least %d history points, have %d", d+max(p, 1), len(a.History))
	}

	level := append([]float64(nil), a.History...)
	anchors := make([]float64, d)
	for k := 0; k < d; k++ {
		anchors[k] = level[len(level)-1]
		level = difference(level)
	}

	resid := make([]float64, q)
	// right-align so resid[q-1] is the newest shock; missing ones stay zero
	for i := 0; i < q && i < len(a.Residuals); i++ {
		resid[q-1-i] = a.Residuals[len(a.Residuals)-1-i]
	}

	return &ARIMAForecaster{
		d:        d,
		mean:     a.Mean,
		ar:       a.AR,
		ma:       a.MA,
		diffed:   level,
		anchors:  anchors,
		resid:    resid,
		maxSteps: maxSteps,
	}, nil
}

func (f *ARIMAForecaster) Kind() models.ModelKind { return models.KindARIMA }

func (f *ARIMAForecaster) Validate(params models.ForecastParams) error {
	return validateHorizon(models.KindARIMA, params.Steps, f.maxSteps)
}

func (f *ARIMAForecaster) Predict(ctx context.Context, params models.ForecastParams) (models.ForecastResult, error) {
	if err := f.Validate(params); err != nil {
		return models.ForecastResult{}, err
	}
	steps := params.Steps
	p, q := len(f.ar), len(f.ma)

	// working copies; the fitted state is shared between requests
	w := make([]float64, 0, len(f.diffed)+steps)
	w = append(w, f.diffed...)
	shocks := make([]float64, 0, q+steps)
	shocks = append(shocks, f.resid...)

	out := make([]float64, steps)
	for h := 0; h < steps; h++ {
		if err := ctx.Err(); err != nil {
			return models.ForecastResult{}, err
		}
		n := len(w)
		next := f.mean
		for i := 0; i < p; i++ {
			next += f.ar[i] * (w[n-1-i] - f.mean)
		}
		m := len(shocks)
		for j := 0; j < q; j++ {
			next += f.ma[j] * shocks[m-1-j]
		}
		w = append(w, next)
		shocks = append(shocks, 0)
		out[h] = next
	}

	for k := f.d - 1; k >= 0; k-- {
		out = integrate(out, f.anchors[k])
	}

	return models.ForecastResult{Kind: models.KindARIMA, Values: out}, nil
}

func difference(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

func integrate(diffs []float64, last float64) []float64 {
	out := make([]float64, len(diffs))
	acc := last
	for i, v := range diffs {
		acc += v
		out[i] = acc
	}
	return out
}

func validateHorizon(kind models.ModelKind, steps, maxSteps int) error {
	if steps < 1 {
		return models.InvalidParam(kind, "steps", "steps must be a positive integer, got %d", steps)
	}
	if maxSteps > 0 && steps > maxSteps {
		return models.InvalidParam(kind, "steps", "steps must be at most %d, got %d", maxSteps, steps)
	}
	return nil
}

var _ domsvc.Forecaster = (*ARIMAForecaster)(nil)
