package service

import (
	"context"

	"BrentCast/internal/domain/models"
)

// Forecaster is the capability set every model adapter implements.
// Validate runs before any inference and must not touch the artifact's state.
type Forecaster interface {
	Kind() models.ModelKind
	Validate(params models.ForecastParams) error
	Predict(ctx context.Context, params models.ForecastParams) (models.ForecastResult, error)
}

// Scaler maps values between model space and price units.
type Scaler interface {
	Transform(values []float64) ([]float64, error)
	InverseTransform(values []float64) ([]float64, error)
}
