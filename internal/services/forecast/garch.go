package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"BrentCast/internal/domain/models"
	domsvc "BrentCast/internal/domain/service"
)

// GARCHArtifact is a fitted GARCH(p,q) volatility model. Alpha weighs lagged
// squared residuals, Beta lagged conditional variances. Residuals and Variances
// are the newest in-sample values, newest last. Scale divides the output when
// the model was fitted on rescaled returns (e.g. percent returns use 100).
type GARCHArtifact struct {
	Mu        float64   `json:"mu"`
	Omega     float64   `json:"omega"`
	Alpha     []float64 `json:"alpha"`
	Beta      []float64 `json:"beta"`
	Residuals []float64 `json:"residuals"`
	Variances []float64 `json:"variances"`
	Scale     float64   `json:"scale,omitempty"`
}

// GARCHForecaster returns the expected conditional volatility for each future step.
type GARCHForecaster struct {
	omega     float64
	alpha     []float64
	beta      []float64
	sqResid   []float64
	variances []float64
	scale     float64
	maxSteps  int
}

func NewGARCHForecaster(raw []byte, maxSteps int) (*GARCHForecaster, error) {
	var a GARCHArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode garch: %w", err)
	}
	return newGARCH(a, maxSteps)
}

func newGARCH(a GARCHArtifact, maxSteps int) (*GARCHForecaster, error) {
	if a.Omega <= 0 {
		return nil, fmt.Errorf("garch: omega must be positive, got %v", a.Omega)
	}
	if len(a.Alpha) == 0 {
		return nil, fmt.Errorf("garch: at least one alpha coefficient required")
	}
	if len(a.Residuals) < len(a.Alpha) {
		return nil, fmt.Errorf("garch: need %d residuals, have %d", len(a.Alpha), len(a.Residuals))
	}
	if len(a.Variances) < len(a.Beta) {
		return nil, fmt.Errorf("garch: need %d variances, have %d", len(a.Beta), len(a.Variances))
	}
	persistence := 0.0
	for _, v := range append(append([]float64(nil), a.Alpha...), a.Beta...) {
		if v < 0 {
			return nil, fmt.Errorf("garch: negative coefficient %v", v)
		}
		persistence += v
	}
	if persistence >= 1 {
		return nil, fmt.Errorf("garch: non-stationary, alpha+beta=%.4f", persistence)
	}

	sq := make([]float64, len(a.Residuals))
	for i, e := range a.Residuals {
		sq[i] = (e - a.Mu) * (e - a.Mu)
	}
	scale := a.Scale
	if scale <= 0 {
		scale = 1
	}

	return &GARCHForecaster{
		omega:     a.Omega,
		alpha:     a.Alpha,
		beta:      a.Beta,
		sqResid:   sq,
		variances: append([]float64(nil), a.Variances...),
		scale:     scale,
		maxSteps:  maxSteps,
	}, nil
}

func (f *GARCHForecaster) Kind() models.ModelKind { return models.KindGARCH }

func (f *GARCHForecaster) Validate(params models.ForecastParams) error {
	return validateHorizon(models.KindGARCH, params.Steps, f.maxSteps)
}

// Unconditional is the long-run volatility the forecasts converge to.
func (f *GARCHForecaster) Unconditional() float64 {
	persistence := 0.0
	for _, a := range f.alpha {
		persistence += a
	}
	for _, b := range f.beta {
		persistence += b
	}
	return math.Sqrt(f.omega/(1-persistence)) / f.scale
}

func (f *GARCHForecaster) Predict(ctx context.Context, params models.ForecastParams) (models.ForecastResult, error) {
	if err := f.Validate(params); err != nil {
		return models.ForecastResult{}, err
	}
	steps := params.Steps

	// E[eps^2] of a future step equals its conditional variance
	eps2 := append(make([]float64, 0, len(f.sqResid)+steps), f.sqResid...)
	sig2 := append(make([]float64, 0, len(f.variances)+steps), f.variances...)

	out := make([]float64, steps)
	for h := 0; h < steps; h++ {
		if err := ctx.Err(); err != nil {
			return models.ForecastResult{}, err
		}
		v := f.omega
		for i, a := range f.alpha {
			v += a * eps2[len(eps2)-1-i]
		}
		for j, b := range f.beta {
			v += b * sig2[len(sig2)-1-j]
		}
		eps2 = append(eps2, v)
		sig2 = append(sig2, v)
		out[h] = math.Sqrt(v) / f.scale
	}

	return models.ForecastResult{Kind: models.KindGARCH, Values: out}, nil
}

var _ domsvc.Forecaster = (*GARCHForecaster)(nil)
