package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"BrentCast/internal/domain/models"
	domrepo "BrentCast/internal/domain/repository"
	domsvc "BrentCast/internal/domain/service"
	"BrentCast/pkg/cache"
	applogger "BrentCast/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

type ForecastConfig struct {
	DefaultSteps int
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// ForecastUseCase validates a request, resolves the adapter for its kind and
// runs it under a timeout. Dispatch never falls back to another kind.
type ForecastUseCase struct {
	registry domrepo.ModelRegistry
	cache    cache.Service
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	tracer   trace.Tracer
	log      *applogger.Logger
	cfg      ForecastConfig
	group    singleflight.Group
}

// NewForecastUseCase wires the orchestrator. c, events and m may be nil.
func NewForecastUseCase(registry domrepo.ModelRegistry, c cache.Service, events domrepo.EventPublisher, m domrepo.Metrics, l *applogger.Logger, cfg ForecastConfig) *ForecastUseCase {
	if cfg.DefaultSteps <= 0 {
		cfg.DefaultSteps = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastUseCase{
		registry: registry,
		cache:    c,
		events:   events,
		metrics:  m,
		tracer:   otel.Tracer("BrentCast/usecase"),
		log:      l,
		cfg:      cfg,
	}
}

// Handle answers one forecast request.
func (uc *ForecastUseCase) Handle(ctx context.Context, req models.ForecastRequest) (models.ForecastResult, error) {
	start := time.Now()
	ctx, span := uc.tracer.Start(ctx, "forecast.handle",
		trace.WithAttributes(attribute.String("forecast.kind", string(req.Kind))))
	defer span.End()

	res, cached, params, err := uc.handle(ctx, req)
	elapsed := time.Since(start)

	outcome := outcomeOf(err, cached)
	if uc.metrics != nil {
		uc.metrics.RecordForecast(string(req.Kind), outcome, elapsed.Seconds())
		if errors.Is(err, models.ErrInference) || errors.Is(err, models.ErrTimeout) {
			uc.metrics.RecordError(outcome)
		}
	}
	span.SetAttributes(
		attribute.Int("forecast.steps", params.Steps),
		attribute.Int("forecast.input_len", len(params.Series)),
		attribute.Bool("forecast.cached", cached),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		uc.logFailure(req.Kind, outcome, elapsed, err)
		return models.ForecastResult{}, err
	}

	uc.publish(ctx, req.Kind, params, res, cached, elapsed)
	return res, nil
}

func (uc *ForecastUseCase) handle(ctx context.Context, req models.ForecastRequest) (models.ForecastResult, bool, models.ForecastParams, error) {
	if !slices.Contains(models.AllKinds, req.Kind) {
		return models.ForecastResult{}, false, models.ForecastParams{},
			models.NewForecastError(req.Kind, models.ErrUnknownModelKind, "", fmt.Errorf("unsupported model kind %q", req.Kind))
	}

	params, err := uc.normalize(req)
	if err != nil {
		return models.ForecastResult{}, false, params, err
	}

	f, err := uc.registry.Forecaster(req.Kind)
	if err != nil {
		return models.ForecastResult{}, false, params, err
	}
	if err := f.Validate(params); err != nil {
		return models.ForecastResult{}, false, params, err
	}

	key := forecastKey(req.Kind, params)
	if res, ok := uc.cached(ctx, req.Kind, key); ok {
		return res, true, params, nil
	}

	ch := uc.group.DoChan(key, func() (any, error) {
		res, err := uc.run(ctx, f, params)
		if err == nil {
			uc.store(ctx, key, res)
		}
		return res, err
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return models.ForecastResult{}, false, params, r.Err
		}
		return cloneResult(r.Val.(models.ForecastResult)), false, params, nil
	case <-ctx.Done():
		return models.ForecastResult{}, false, params, timeoutOr(req.Kind, ctx.Err())
	}
}

// run bounds one adapter call. It is detached from the caller's cancellation
// because singleflight shares it between callers; each caller still stops
// waiting when its own context ends.
func (uc *ForecastUseCase) run(ctx context.Context, f domsvc.Forecaster, params models.ForecastParams) (models.ForecastResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.Timeout)
	defer cancel()

	type outcome struct {
		res models.ForecastResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.Predict(ctx, params)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			if len(o.res.Values) == 0 {
				return models.ForecastResult{}, models.NewForecastError(f.Kind(), models.ErrInference, "", errors.New("empty forecast"))
			}
			return o.res, nil
		}
		var fe *models.ForecastError
		if errors.As(o.err, &fe) {
			return models.ForecastResult{}, o.err
		}
		if errors.Is(o.err, context.DeadlineExceeded) {
			return models.ForecastResult{}, timeoutOr(f.Kind(), o.err)
		}
		return models.ForecastResult{}, models.NewForecastError(f.Kind(), models.ErrInference, "", o.err)
	case <-ctx.Done():
		return models.ForecastResult{}, timeoutOr(f.Kind(), ctx.Err())
	}
}

func timeoutOr(kind models.ModelKind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewForecastError(kind, models.ErrTimeout, "", err)
	}
	return err
}

// normalize applies defaults and coerces inputs before any adapter runs.
func (uc *ForecastUseCase) normalize(req models.ForecastRequest) (models.ForecastParams, error) {
	if req.Kind.HorizonBased() {
		steps := uc.cfg.DefaultSteps
		if req.Steps != nil {
			steps = *req.Steps
		}
		if steps < 1 {
			return models.ForecastParams{Steps: steps}, models.InvalidParam(req.Kind, "steps", "steps must be a positive integer, got %d", steps)
		}
		return models.ForecastParams{Steps: steps}, nil
	}

	series, err := CoerceSeries(req.Input)
	if err != nil {
		return models.ForecastParams{}, models.NewForecastError(req.Kind, models.ErrShape, "input", err)
	}
	if len(series) == 0 {
		return models.ForecastParams{}, models.InvalidParam(req.Kind, "input", "input must contain at least one value")
	}
	if len(series) > MaxInputLen {
		return models.ForecastParams{}, models.InvalidParam(req.Kind, "input", "input has %d values, at most %d allowed", len(series), MaxInputLen)
	}
	return models.ForecastParams{Series: series, Raw: req.Raw}, nil
}

// MaxInputLen caps the number of values an LSTM request may carry.
const MaxInputLen = 10000

// ParseSteps converts a loosely decoded horizon into a step count. nil means
// the caller omitted it. Positivity is checked later with the default applied.
func ParseSteps(kind models.ModelKind, v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return nil, models.InvalidParam(kind, "steps", "steps must be an integer, got %v", x)
		}
		n = int(x)
	case json.Number:
		i, err := strconv.Atoi(x.String())
		if err != nil {
			return nil, models.InvalidParam(kind, "steps", "steps must be an integer, got %s", x)
		}
		n = i
	default:
		return nil, models.InvalidParam(kind, "steps", "steps must be an integer, got %v", v)
	}
	return &n, nil
}

// CoerceSeries flattens a scalar or nested arrays into float64 values.
// Numbers and numeric strings are accepted; anything else is a shape error.
// A nil input yields an empty series.
func CoerceSeries(input any) ([]float64, error) {
	if input == nil {
		return nil, nil
	}
	var out []float64
	var walk func(pos string, x any) error
	walk = func(pos string, x any) error {
		switch v := x.(type) {
		case []any:
			for i, e := range v {
				if err := walk(pos+"."+strconv.Itoa(i), e); err != nil {
					return err
				}
			}
		case []float64:
			out = append(out, v...)
		default:
			f, ok := toFloat(v)
			if !ok {
				if pos == "" {
					return fmt.Errorf("value %v is not numeric", x)
				}
				return fmt.Errorf("element %s (%v) is not numeric", pos[1:], x)
			}
			out = append(out, f)
		}
		return nil
	}
	if err := walk("", input); err != nil {
		return nil, err
	}
	return out, nil
}

func toFloat(x any) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

const cachePrefix = "forecast"

func forecastKey(kind models.ModelKind, p models.ForecastParams) string {
	if kind.HorizonBased() {
		return cache.GenerateKeyWithParams(cachePrefix, kind, p.Steps)
	}
	b, _ := json.Marshal(p.Series)
	return cache.GenerateKeyWithParams(cachePrefix, kind, p.Raw, cache.HashKey(string(b)))
}

// PurgeCache drops every cached forecast. Results cached by a previous
// process may come from different artifacts, so it runs once at startup.
func (uc *ForecastUseCase) PurgeCache(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}
	if err := uc.cache.DeleteByPattern(ctx, cache.BuildPattern(cachePrefix)); err != nil {
		return fmt.Errorf("purge forecast cache: %w", err)
	}
	return nil
}

func (uc *ForecastUseCase) cached(ctx context.Context, kind models.ModelKind, key string) (models.ForecastResult, bool) {
	if uc.cache == nil {
		return models.ForecastResult{}, false
	}
	var res models.ForecastResult
	err := uc.cache.Get(ctx, key, &res)
	hit := err == nil && len(res.Values) > 0
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		uc.log.Warn("forecast cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	if uc.metrics != nil {
		uc.metrics.RecordCache(string(kind), hit)
	}
	return res, hit
}

func (uc *ForecastUseCase) store(ctx context.Context, key string, res models.ForecastResult) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Set(context.WithoutCancel(ctx), key, res, uc.cfg.CacheTTL); err != nil {
		uc.log.Warn("forecast cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

func (uc *ForecastUseCase) publish(ctx context.Context, kind models.ModelKind, p models.ForecastParams, res models.ForecastResult, cached bool, elapsed time.Duration) {
	if uc.events == nil {
		return
	}
	ev := &models.ForecastEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Steps:      p.Steps,
		InputLen:   len(p.Series),
		Values:     res.Values,
		Cached:     cached,
		DurationMs: elapsed.Milliseconds(),
		At:         time.Now().UTC(),
	}
	if err := uc.events.PublishForecast(context.WithoutCancel(ctx), ev); err != nil {
		uc.log.Warn("forecast event publish failed",
			applogger.String("kind", string(kind)),
			applogger.String("event_id", ev.ID),
			applogger.Error(err),
		)
	}
}

func (uc *ForecastUseCase) logFailure(kind models.ModelKind, outcome string, elapsed time.Duration, err error) {
	fields := []applogger.Field{
		applogger.String("kind", string(kind)),
		applogger.String("outcome", outcome),
		applogger.Duration("duration_ms", elapsed),
		applogger.Error(err),
	}
	switch {
	case errors.Is(err, models.ErrInference), errors.Is(err, models.ErrTimeout):
		uc.log.Error("forecast failed", fields...)
	default:
		uc.log.Debug("forecast rejected", fields...)
	}
}

func outcomeOf(err error, cached bool) string {
	switch {
	case err == nil && cached:
		return "cached"
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, models.ErrShape):
		return "shape_error"
	case errors.Is(err, models.ErrModelUnavailable):
		return "unavailable"
	case errors.Is(err, models.ErrUnknownModelKind):
		return "unknown_kind"
	case errors.Is(err, models.ErrTimeout):
		return "timeout"
	case errors.Is(err, models.ErrInference):
		return "inference_error"
	default:
		return "error"
	}
}

func cloneResult(r models.ForecastResult) models.ForecastResult {
	out := models.ForecastResult{Kind: r.Kind, Values: slices.Clone(r.Values)}
	if r.Series != nil {
		out.Series = make(map[string][]float64, len(r.Series))
		for k, v := range r.Series {
			out.Series[k] = slices.Clone(v)
		}
	}
	return out
}

// HandleAll forecasts every horizon-based kind concurrently. Kinds that fail
// are reported in Errors; the call itself fails only on an invalid horizon.
func (uc *ForecastUseCase) HandleAll(ctx context.Context, steps *int) (*models.BatchForecast, error) {
	n := uc.cfg.DefaultSteps
	if steps != nil {
		n = *steps
	}
	if n < 1 {
		return nil, models.InvalidParam("", "steps", "steps must be a positive integer, got %d", n)
	}

	res := &models.BatchForecast{
		Steps:   n,
		Results: map[models.ModelKind]models.ForecastResult{},
		Errors:  map[models.ModelKind]string{},
	}

	type item struct {
		kind models.ModelKind
		res  models.ForecastResult
		err  error
	}
	ch := make(chan item, len(models.AllKinds))
	var wg sync.WaitGroup
	for _, k := range models.AllKinds {
		if !k.HorizonBased() {
			continue
		}
		wg.Add(1)
		go func(k models.ModelKind) {
			defer wg.Done()
			r, err := uc.Handle(ctx, models.ForecastRequest{Kind: k, Steps: &n})
			ch <- item{k, r, err}
		}(k)
	}
	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.kind] = it.err.Error()
			continue
		}
		res.Results[it.kind] = it.res
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
