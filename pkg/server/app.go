package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BrentCast/internal/service/ratelimit"
	"BrentCast/internal/usecase"
	"BrentCast/pkg/config"
	xhttp "BrentCast/pkg/http"
	pkgkafka "BrentCast/pkg/kafka"
	applogger "BrentCast/pkg/logger"
	"BrentCast/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	registry   *prometheus.Registry
	handler    xhttp.Handler
	forecast   *usecase.ForecastUseCase
	history    *usecase.HistoryUseCase
	limiter    *ratelimit.Limiter
	producer   *pkgkafka.Producer
	httpServer *xhttp.Server

	// set before Run to start without waiting for OS signals (tests)
	stop <-chan struct{}
}

// New creates a new App instance with all dependencies. forecast, history,
// limiter and producer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	handler xhttp.Handler,
	forecast *usecase.ForecastUseCase,
	history *usecase.HistoryUseCase,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		log:      l,
		registry: reg,
		handler:  handler,
		forecast: forecast,
		history:  history,
		limiter:  limiter,
		producer: producer,
	}
}

// Addr reports the listen address once Run has built the server.
func (a *App) Addr() string {
	if a.httpServer == nil {
		return ""
	}
	return a.httpServer.Addr()
}

// Run starts the application and blocks until interrupted or the listener fails.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     a.cfg.Tracing.Enabled,
		ServiceName: a.cfg.Tracing.ServiceName,
		Environment: a.cfg.Environment,
		Endpoint:    a.cfg.Tracing.Endpoint,
		Insecure:    a.cfg.Tracing.Insecure,
		SampleRatio: a.cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if a.producer != nil {
		a.log.AddCollector(&applogger.CollectionConfig{
			TimeInterval: a.cfg.Kafka.LogFlush,
			Topic:        a.cfg.Kafka.LogTopic,
			Publisher:    a.producer,
		})
		a.log.Info("kafka log collector attached", applogger.String("topic", a.cfg.Kafka.LogTopic))
	}

	if a.forecast != nil {
		if err := a.forecast.PurgeCache(ctx); err != nil {
			a.log.Warn("forecast cache purge failed", applogger.Error(err))
		}
	}

	// History is loaded eagerly so the first request does not pay for it;
	// a failure here is retried on the next request.
	if a.history != nil {
		if err := a.history.Load(ctx); err != nil {
			a.log.Warn("history preload failed", applogger.Error(err))
		}
	}

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithBarePayloads(a.cfg.Server.BarePayloads),
		xhttp.WithLogger(a.log),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(a.cfg.Metrics.Path, a.registry, a.cfg.Metrics.SlowThreshold))
	} else {
		opts = append(opts, xhttp.WithMetrics("", a.registry, 0))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)
	errCh := a.httpServer.Start()

	stop := a.stop
	if stop == nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		done := make(chan struct{})
		go func() {
			select {
			case <-sigCh:
				a.log.Info("shutdown signal received")
			case <-ctx.Done():
			}
			close(done)
		}()
		stop = done
	}

	var runErr error
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = err
		}
	case <-stop:
	}

	if err := a.shutdown(ctx, shutdownTracing); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.log.Debug("rate limiter swept idle clients", applogger.Int("removed", n))
			}
		}
	}
}

// shutdown stops the HTTP server and flushes log and trace exporters.
// Connections owned by the DI graph are closed by its cleanup function.
func (a *App) shutdown(ctx context.Context, shutdownTracing telemetry.ShutdownFunc) error {
	a.log.Info("shutting down...")

	var firstErr error
	if err := a.httpServer.Stop(context.WithoutCancel(ctx)); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	a.log.RemoveCollector()

	if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
		a.log.Warn("tracer shutdown error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return firstErr
}
