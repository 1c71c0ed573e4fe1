package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"BrentCast/internal/domain/models"
	"BrentCast/internal/domain/repository"
	domsvc "BrentCast/internal/domain/service"
	applogger "BrentCast/pkg/logger"
)

// ArtifactNames are the per-kind artifact names resolved by an ArtifactSource.
type ArtifactNames struct {
	ARIMA  string
	GARCH  string
	VAR    string
	LSTM   string
	Scaler string
}

type LoadOptions struct {
	Names         ArtifactNames
	MaxSteps      int
	VARTarget     string
	RemoteTimeout time.Duration
}

// Registry holds the adapters built from artifacts at startup. It is immutable
// after LoadRegistry returns and safe for concurrent use.
type Registry struct {
	forecasters map[models.ModelKind]domsvc.Forecaster
	status      map[models.ModelKind]models.ModelStatus
	failures    map[models.ModelKind]error
}

// NewRegistry builds a registry from ready adapters; kinds not given are
// reported as unavailable.
func NewRegistry(forecasters ...domsvc.Forecaster) *Registry {
	r := &Registry{
		forecasters: make(map[models.ModelKind]domsvc.Forecaster),
		status:      make(map[models.ModelKind]models.ModelStatus),
		failures:    make(map[models.ModelKind]error),
	}
	now := time.Now()
	for _, f := range forecasters {
		r.forecasters[f.Kind()] = f
		r.status[f.Kind()] = models.ModelStatus{Kind: f.Kind(), Available: true, Backend: backendOf(f), LoadedAt: now}
	}
	for _, k := range models.AllKinds {
		if _, ok := r.forecasters[k]; !ok {
			r.fail(k, "", fmt.Errorf("no artifact registered"))
		}
	}
	return r
}

func (r *Registry) fail(kind models.ModelKind, source string, err error) {
	delete(r.forecasters, kind)
	r.failures[kind] = err
	r.status[kind] = models.ModelStatus{Kind: kind, Available: false, Source: source, Error: err.Error()}
}

// LoadRegistry reads every artifact independently. A kind that fails to load
// is recorded and reported unavailable; the others still serve.
func LoadRegistry(ctx context.Context, src repository.ArtifactSource, opts LoadOptions, l *applogger.Logger, m repository.Metrics) *Registry {
	if l == nil {
		l = applogger.Nop()
	}
	r := &Registry{
		forecasters: make(map[models.ModelKind]domsvc.Forecaster),
		status:      make(map[models.ModelKind]models.ModelStatus),
		failures:    make(map[models.ModelKind]error),
	}

	type loaded struct {
		kind   models.ModelKind
		source string
		f      domsvc.Forecaster
		err    error
	}

	builders := map[models.ModelKind]func() (string, domsvc.Forecaster, error){
		models.KindARIMA: func() (string, domsvc.Forecaster, error) {
			raw, err := src.ReadArtifact(ctx, opts.Names.ARIMA)
			if err != nil {
				return opts.Names.ARIMA, nil, err
			}
			f, err := NewARIMAForecaster(raw, opts.MaxSteps)
			return opts.Names.ARIMA, f, err
		},
		models.KindGARCH: func() (string, domsvc.Forecaster, error) {
			raw, err := src.ReadArtifact(ctx, opts.Names.GARCH)
			if err != nil {
				return opts.Names.GARCH, nil, err
			}
			f, err := NewGARCHForecaster(raw, opts.MaxSteps)
			return opts.Names.GARCH, f, err
		},
		models.KindVAR: func() (string, domsvc.Forecaster, error) {
			raw, err := src.ReadArtifact(ctx, opts.Names.VAR)
			if err != nil {
				return opts.Names.VAR, nil, err
			}
			f, err := NewVARForecaster(raw, opts.VARTarget, opts.MaxSteps)
			return opts.Names.VAR, f, err
		},
		models.KindLSTM: func() (string, domsvc.Forecaster, error) {
			rawScaler, err := src.ReadArtifact(ctx, opts.Names.Scaler)
			if err != nil {
				return opts.Names.Scaler, nil, fmt.Errorf("scaler: %w", err)
			}
			scaler, err := NewScaler(rawScaler)
			if err != nil {
				return opts.Names.Scaler, nil, err
			}
			raw, err := src.ReadArtifact(ctx, opts.Names.LSTM)
			if err != nil {
				return opts.Names.LSTM, nil, err
			}
			f, err := NewLSTMForecaster(raw, scaler, opts.RemoteTimeout)
			return opts.Names.LSTM, f, err
		},
	}

	results := make(chan loaded, len(builders))
	var wg sync.WaitGroup
	for kind, build := range builders {
		wg.Add(1)
		go func(kind models.ModelKind, build func() (string, domsvc.Forecaster, error)) {
			defer wg.Done()
			source, f, err := build()
			results <- loaded{kind: kind, source: src.Describe(source), f: f, err: err}
		}(kind, build)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			r.fail(res.kind, res.source, res.err)
			l.Error("artifact load failed",
				applogger.String("kind", string(res.kind)),
				applogger.String("source", res.source),
				applogger.Error(res.err),
			)
			if m != nil {
				m.RecordArtifact(string(res.kind), false)
			}
			continue
		}
		r.forecasters[res.kind] = res.f
		r.status[res.kind] = models.ModelStatus{
			Kind:      res.kind,
			Available: true,
			Source:    res.source,
			Backend:   backendOf(res.f),
			LoadedAt:  time.Now(),
		}
		l.Info("artifact loaded",
			applogger.String("kind", string(res.kind)),
			applogger.String("source", res.source),
			applogger.String("backend", backendOf(res.f)),
		)
		if m != nil {
			m.RecordArtifact(string(res.kind), true)
		}
	}
	return r
}

// Forecaster resolves the adapter for kind. Kinds outside the supported set
// yield ErrUnknownModelKind; supported kinds whose artifact failed yield
// ErrModelUnavailable wrapping the startup error.
func (r *Registry) Forecaster(kind models.ModelKind) (domsvc.Forecaster, error) {
	if f, ok := r.forecasters[kind]; ok {
		return f, nil
	}
	if err, ok := r.failures[kind]; ok {
		return nil, models.NewForecastError(kind, models.ErrModelUnavailable, "", fmt.Errorf("%w: %v", models.ErrStartup, err))
	}
	return nil, models.NewForecastError(kind, models.ErrUnknownModelKind, "", fmt.Errorf("unsupported model kind %q", kind))
}

// Status lists every supported kind in reporting order.
func (r *Registry) Status() []models.ModelStatus {
	out := make([]models.ModelStatus, 0, len(models.AllKinds))
	for _, k := range models.AllKinds {
		out = append(out, r.status[k])
	}
	return out
}

// Available lists the kinds that can serve requests.
func (r *Registry) Available() []models.ModelKind {
	out := make([]models.ModelKind, 0, len(r.forecasters))
	for _, k := range models.AllKinds {
		if _, ok := r.forecasters[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func backendOf(f domsvc.Forecaster) string {
	if b, ok := f.(interface{ Backend() string }); ok {
		return b.Backend()
	}
	return "native"
}

var _ repository.ModelRegistry = (*Registry)(nil)
