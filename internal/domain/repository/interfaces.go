package repository

import (
	"context"

	"BrentCast/internal/domain/models"
	"BrentCast/internal/domain/service"
)

// HistoryStore provides read-only access to the price series, ordered by date.
type HistoryStore interface {
	Load(ctx context.Context) ([]models.PricePoint, error)
	Close() error
}

// ModelRegistry resolves a kind to its loaded adapter.
type ModelRegistry interface {
	Forecaster(kind models.ModelKind) (service.Forecaster, error)
	Status() []models.ModelStatus
}

// EventPublisher emits forecast events to downstream consumers.
type EventPublisher interface {
	PublishForecast(ctx context.Context, ev *models.ForecastEvent) error
	Close() error
}

// Metrics records service-level measurements.
type Metrics interface {
	RecordForecast(kind string, outcome string, seconds float64)
	RecordCache(kind string, hit bool)
	RecordArtifact(kind string, loaded bool)
	RecordHistoryRows(n int)
	RecordError(kind string)
}

// ArtifactSource reads serialized model artifacts by name.
type ArtifactSource interface {
	ReadArtifact(ctx context.Context, name string) ([]byte, error)
	Describe(name string) string
}
