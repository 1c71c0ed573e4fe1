package forecast

import (
	"encoding/json"
	"fmt"
	"math"

	domsvc "BrentCast/internal/domain/service"
)

// ScalerArtifact is the serialized form of a fitted min-max or standard scaler.
// Per-feature arrays hold one entry per fitted column; a single entry applies
// to every value.
type ScalerArtifact struct {
	Type         string     `json:"type"`
	DataMin      []float64  `json:"data_min,omitempty"`
	DataMax      []float64  `json:"data_max,omitempty"`
	FeatureRange [2]float64 `json:"feature_range,omitempty"`
	Mean         []float64  `json:"mean,omitempty"`
	Scale        []float64  `json:"scale,omitempty"`
}

// affineScaler stores the forward map as x*mul + add per column.
type affineScaler struct {
	mul []float64
	add []float64
}

// NewScaler builds a Scaler from its artifact bytes.
func NewScaler(raw []byte) (domsvc.Scaler, error) {
	var a ScalerArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	return scalerFromArtifact(a)
}

func scalerFromArtifact(a ScalerArtifact) (*affineScaler, error) {
	switch a.Type {
	case "", "minmax":
		if len(a.DataMin) == 0 || len(a.DataMin) != len(a.DataMax) {
			return nil, fmt.Errorf("minmax scaler: data_min/data_max length mismatch")
		}
		lo, hi := a.FeatureRange[0], a.FeatureRange[1]
		if lo == 0 && hi == 0 {
			hi = 1
		}
		s := &affineScaler{mul: make([]float64, len(a.DataMin)), add: make([]float64, len(a.DataMin))}
		for i := range a.DataMin {
			span := a.DataMax[i] - a.DataMin[i]
			if span == 0 {
				span = 1
			}
			s.mul[i] = (hi - lo) / span
			s.add[i] = lo - a.DataMin[i]*s.mul[i]
		}
		return s, nil
	case "standard":
		if len(a.Mean) == 0 || len(a.Mean) != len(a.Scale) {
			return nil, fmt.Errorf("standard scaler: mean/scale length mismatch")
		}
		s := &affineScaler{mul: make([]float64, len(a.Mean)), add: make([]float64, len(a.Mean))}
		for i := range a.Mean {
			sc := a.Scale[i]
			if sc == 0 {
				sc = 1
			}
			s.mul[i] = 1 / sc
			s.add[i] = -a.Mean[i] / sc
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported scaler type %q", a.Type)
	}
}

func (s *affineScaler) column(i, n int) (int, error) {
	switch len(s.mul) {
	case 1:
		return 0, nil
	case n:
		return i, nil
	}
	return 0, fmt.Errorf("scaler fitted on %d features, got %d values", len(s.mul), n)
}

func (s *affineScaler) Transform(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		c, err := s.column(i, len(values))
		if err != nil {
			return nil, err
		}
		out[i] = v*s.mul[c] + s.add[c]
	}
	return out, nil
}

func (s *affineScaler) InverseTransform(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		c, err := s.column(i, len(values))
		if err != nil {
			return nil, err
		}
		out[i] = (v - s.add[c]) / s.mul[c]
		if math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("inverse transform overflow at %d", i)
		}
	}
	return out, nil
}

var _ domsvc.Scaler = (*affineScaler)(nil)
