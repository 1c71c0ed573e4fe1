//go:build wireinject
// +build wireinject

package di

import (
	domrepo "BrentCast/internal/domain/repository"
	"BrentCast/internal/services/forecast"
	"BrentCast/pkg/config"
	"BrentCast/pkg/server"

	"github.com/google/wire"
)

var forecastSet = wire.NewSet(
	ProvideLogger,
	ProvidePrometheusRegistry,
	ProvideMetrics,

	// Repositories
	ProvideHistoryStore,
	ProvideArtifactSource,
	ProvideModelRegistry,
	wire.Bind(new(domrepo.ModelRegistry), new(*forecast.Registry)),
	ProvideCache,
	ProvideKafkaProducer,
	ProvideEventPublisher,

	// Use cases
	ProvideForecastUseCase,
	ProvideHistoryUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		forecastSet,
		ProvideMetricsUseCase,
		ProvideRateLimiter,
		ProvideForecastHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the forecasting graph for one-shot CLI commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		forecastSet,
		ProvideServices,
	)
	return nil, nil, nil
}
