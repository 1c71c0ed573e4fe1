package di

import (
	"context"
	"fmt"
	"time"

	domrepo "BrentCast/internal/domain/repository"
	"BrentCast/internal/handler/api"
	internalrepo "BrentCast/internal/repository"
	"BrentCast/internal/service/ratelimit"
	"BrentCast/internal/services/forecast"
	"BrentCast/internal/usecase"
	"BrentCast/pkg/cache"
	pkgch "BrentCast/pkg/clickhouse"
	"BrentCast/pkg/config"
	pkgkafka "BrentCast/pkg/kafka"
	applogger "BrentCast/pkg/logger"
	"BrentCast/pkg/metrics"
	"BrentCast/pkg/server"
	"BrentCast/pkg/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Services is the subset of the graph the CLI uses without an HTTP server.
type Services struct {
	Logger   *applogger.Logger
	Registry *forecast.Registry
	Forecast *usecase.ForecastUseCase
	History  *usecase.HistoryUseCase
}

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvidePrometheusRegistry creates the registry served on the metrics path.
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSQLHistoryStore opens the SQL-backed store for the sqlite or
// clickhouse backend and makes sure its table exists. The cleanup closes the
// underlying connection.
func ProvideSQLHistoryStore(cfg *config.Config, l *applogger.Logger) (*internalrepo.SQLHistoryStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store   *internalrepo.SQLHistoryStore
		cleanup func()
	)
	switch cfg.History.Backend {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewSQLiteHistoryStore(db, cfg.History.Table, l)
		cleanup = func() { _ = store.Close() }
	case "clickhouse":
		client, err := ProvideClickHouseClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewClickHouseHistoryStore(client, cfg.History.Table, l)
		cleanup = func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("history backend %q is not SQL", cfg.History.Backend)
	}

	if err := store.Init(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

// ProvideHistoryStore picks the history backend named in config.
func ProvideHistoryStore(cfg *config.Config, l *applogger.Logger) (domrepo.HistoryStore, func(), error) {
	if cfg.History.Backend == "csv" {
		return internalrepo.NewCSVHistoryStore(cfg.History.Path), func() {}, nil
	}
	store, cleanup, err := ProvideSQLHistoryStore(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	return store, cleanup, nil
}

// ProvideArtifactSource serves model artifacts from the configured directory.
func ProvideArtifactSource(cfg *config.Config) domrepo.ArtifactSource {
	return internalrepo.NewDirArtifactSource(cfg.Artifacts.Dir)
}

// ProvideModelRegistry loads every artifact once. Kinds that fail to load are
// reported unavailable rather than failing startup.
func ProvideModelRegistry(cfg *config.Config, src domrepo.ArtifactSource, l *applogger.Logger, m domrepo.Metrics) *forecast.Registry {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return forecast.LoadRegistry(ctx, src, forecast.LoadOptions{
		Names: forecast.ArtifactNames{
			ARIMA:  cfg.Artifacts.ARIMA,
			GARCH:  cfg.Artifacts.GARCH,
			VAR:    cfg.Artifacts.VAR,
			LSTM:   cfg.Artifacts.LSTM,
			Scaler: cfg.Artifacts.Scaler,
		},
		MaxSteps:      cfg.Forecast.MaxSteps,
		VARTarget:     cfg.Forecast.VARTarget,
		RemoteTimeout: cfg.Artifacts.RemoteTimeout,
	}, l, m)
}

// ProvideCache returns nil when caching is disabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}

	switch cfg.Cache.Mode {
	case "layered":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx,
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		lc := cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MaxEntries),
			cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
		)
		l.Info("forecast cache ready",
			applogger.String("mode", "layered"),
			applogger.String("redis", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		)
		return lc, func() { _ = lc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
			cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		)
		l.Info("forecast cache ready", applogger.String("mode", "memory"), applogger.Int("max_entries", cfg.Cache.MaxEntries))
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher publishes forecast events to Kafka, or drops them
// when no producer is configured.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

func ProvideForecastUseCase(
	cfg *config.Config,
	registry domrepo.ModelRegistry,
	c cache.Service,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(registry, c, events, m, l, usecase.ForecastConfig{
		DefaultSteps: cfg.Forecast.DefaultSteps,
		Timeout:      cfg.Forecast.Timeout,
		CacheTTL:     cfg.Cache.TTL,
	})
}

func ProvideHistoryUseCase(store domrepo.HistoryStore, m domrepo.Metrics, l *applogger.Logger) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store, m, l)
}

func ProvideMetricsUseCase(cfg *config.Config) *usecase.MetricsUseCase {
	return usecase.NewMetricsUseCase(cfg.Report)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
}

func ProvideForecastHandler(
	l *applogger.Logger,
	fuc *usecase.ForecastUseCase,
	huc *usecase.HistoryUseCase,
	muc *usecase.MetricsUseCase,
	registry domrepo.ModelRegistry,
	limiter *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, fuc, huc, muc, registry, limiter)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	h *api.ForecastEchoHandler,
	fuc *usecase.ForecastUseCase,
	huc *usecase.HistoryUseCase,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
) *server.App {
	return server.New(cfg, l, reg, h, fuc, huc, limiter, producer)
}

func ProvideServices(
	l *applogger.Logger,
	registry *forecast.Registry,
	fuc *usecase.ForecastUseCase,
	huc *usecase.HistoryUseCase,
) *Services {
	return &Services{Logger: l, Registry: registry, Forecast: fuc, History: huc}
}
