package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"BrentCast/internal/domain/models"
	domsvc "BrentCast/internal/domain/service"
	"BrentCast/internal/services/forecast"
	"BrentCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arimaArtifact = `{
  "order": [1, 1, 1],
  "mean": 0.05,
  "ar": [0.5],
  "ma": [0.2],
  "history": [70.0, 71.0, 70.5, 72.0],
  "residuals": [0.3, -0.1]
}`

type stubForecaster struct {
	kind    models.ModelKind
	delay   time.Duration
	release chan struct{}
	err     error
	calls   atomic.Int32

	mu   sync.Mutex
	last models.ForecastParams
}

func (s *stubForecaster) Kind() models.ModelKind { return s.kind }

func (s *stubForecaster) Validate(models.ForecastParams) error { return nil }

func (s *stubForecaster) Predict(_ context.Context, p models.ForecastParams) (models.ForecastResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = p
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return models.ForecastResult{}, s.err
	}
	n := p.Steps
	if !s.kind.HorizonBased() {
		n = len(p.Series)
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}
	return models.ForecastResult{Kind: s.kind, Values: values}, nil
}

type recordedForecast struct {
	kind, outcome string
}

type fakeMetrics struct {
	mu        sync.Mutex
	forecasts []recordedForecast
	hits      int
	misses    int
	errors    int
}

func (m *fakeMetrics) RecordForecast(kind, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts = append(m.forecasts, recordedForecast{kind, outcome})
}

func (m *fakeMetrics) RecordCache(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *fakeMetrics) RecordArtifact(string, bool) {}
func (m *fakeMetrics) RecordHistoryRows(int)       {}

func (m *fakeMetrics) RecordError(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*models.ForecastEvent
}

func (p *capturePublisher) PublishForecast(_ context.Context, ev *models.ForecastEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func intp(n int) *int { return &n }

func registryOf(fs ...*stubForecaster) *forecast.Registry {
	adapters := make([]domsvc.Forecaster, 0, len(fs))
	for _, f := range fs {
		adapters = append(adapters, f)
	}
	return forecast.NewRegistry(adapters...)
}

func newUseCase(t *testing.T, cfg ForecastConfig, fs ...*stubForecaster) *ForecastUseCase {
	t.Helper()
	return NewForecastUseCase(registryOf(fs...), nil, nil, nil, nil, cfg)
}

func TestHandleARIMAReturnsRequestedHorizon(t *testing.T) {
	f, err := forecast.NewARIMAForecaster([]byte(arimaArtifact), 3650)
	require.NoError(t, err)
	uc := NewForecastUseCase(forecast.NewRegistry(f), nil, nil, nil, nil, ForecastConfig{DefaultSteps: 30})

	for _, n := range []int{1, 10, 90} {
		res, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindARIMA, Steps: intp(n)})
		require.NoError(t, err)
		assert.Len(t, res.Values, n)
	}

	res, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindARIMA})
	require.NoError(t, err)
	assert.Len(t, res.Values, 30)
}

func TestHandleARIMAIsDeterministic(t *testing.T) {
	f, err := forecast.NewARIMAForecaster([]byte(arimaArtifact), 3650)
	require.NoError(t, err)
	uc := NewForecastUseCase(forecast.NewRegistry(f), nil, nil, nil, nil, ForecastConfig{})

	req := models.ForecastRequest{Kind: models.KindARIMA, Steps: intp(10)}
	a, err := uc.Handle(context.Background(), req)
	require.NoError(t, err)
	b, err := uc.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
}

func TestHandleRejectsNonPositiveSteps(t *testing.T) {
	stub := &stubForecaster{kind: models.KindARIMA}
	uc := newUseCase(t, ForecastConfig{}, stub)

	for _, n := range []int{0, -1, -30} {
		_, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindARIMA, Steps: intp(n)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidParameter), "steps=%d: %v", n, err)

		var fe *models.ForecastError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "steps", fe.Field)
	}
	assert.Zero(t, stub.calls.Load())
}

func TestHandleLSTMInputValidation(t *testing.T) {
	stub := &stubForecaster{kind: models.KindLSTM}
	uc := newUseCase(t, ForecastConfig{}, stub)
	ctx := context.Background()

	_, err := uc.Handle(ctx, models.ForecastRequest{Kind: models.KindLSTM, Input: []any{}})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = uc.Handle(ctx, models.ForecastRequest{Kind: models.KindLSTM, Input: []any{"a", "b"}})
	assert.ErrorIs(t, err, models.ErrShape)

	_, err = uc.Handle(ctx, models.ForecastRequest{Kind: models.KindLSTM, Input: []any{1.0, map[string]any{"x": 1}}})
	assert.ErrorIs(t, err, models.ErrShape)

	// nested but empty counts as no input at all
	for _, in := range []any{nil, []any{[]any{}}, []any{[]any{}, []any{}}} {
		_, err = uc.Handle(ctx, models.ForecastRequest{Kind: models.KindLSTM, Input: in})
		assert.ErrorIs(t, err, models.ErrInvalidParameter, "%v", in)
	}

	_, err = uc.Handle(ctx, models.ForecastRequest{Kind: models.KindLSTM, Input: "abc"})
	var fe *models.ForecastError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, models.ErrShape)
	assert.Equal(t, "input", fe.Field)

	_, err = uc.Handle(ctx, models.ForecastRequest{Kind: models.KindLSTM, Input: make([]float64, MaxInputLen+1)})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	assert.Zero(t, stub.calls.Load())

	res, err := uc.Handle(ctx, models.ForecastRequest{
		Kind:  models.KindLSTM,
		Input: []any{[]any{0.1}, "0.2", json.Number("0.3")},
		Raw:   true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Values)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, stub.last.Series)
	assert.True(t, stub.last.Raw)
}

func TestCoerceSeries(t *testing.T) {
	got, err := CoerceSeries([]any{1, int64(2), float32(3.5), " 4 ", []any{[]any{5.0}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3.5, 4, 5}, got)

	got, err = CoerceSeries([]any{[]any{}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = CoerceSeries(5.0)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, got)

	_, err = CoerceSeries("abc")
	assert.Error(t, err)

	_, err = CoerceSeries([]any{true})
	assert.Error(t, err)

	_, err = CoerceSeries([]any{nil})
	assert.Error(t, err)
}

func TestParseSteps(t *testing.T) {
	for _, v := range []any{5.0, 5, json.Number("5")} {
		n, err := ParseSteps(models.KindARIMA, v)
		require.NoError(t, err, "%v", v)
		assert.Equal(t, 5, *n)
	}

	n, err := ParseSteps(models.KindARIMA, nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	// sign is checked by the orchestrator once the default is applied
	n, err = ParseSteps(models.KindARIMA, -3.0)
	require.NoError(t, err)
	assert.Equal(t, -3, *n)

	for _, v := range []any{2.5, "ten", "5", true, []any{1.0}, 1e300} {
		_, err := ParseSteps(models.KindGARCH, v)
		var fe *models.ForecastError
		require.ErrorAs(t, err, &fe, "%v", v)
		assert.ErrorIs(t, err, models.ErrInvalidParameter)
		assert.Equal(t, "steps", fe.Field)
	}
}

func TestHandleUnavailableAndUnknownKinds(t *testing.T) {
	uc := newUseCase(t, ForecastConfig{}, &stubForecaster{kind: models.KindARIMA})
	ctx := context.Background()

	_, err := uc.Handle(ctx, models.ForecastRequest{Kind: models.KindGARCH, Steps: intp(5)})
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
	assert.ErrorIs(t, err, models.ErrUnknownModelKind)
	assert.ErrorIs(t, err, models.ErrStartup)

	_, err = uc.Handle(ctx, models.ForecastRequest{Kind: "PROPHET", Steps: intp(5)})
	assert.ErrorIs(t, err, models.ErrUnknownModelKind)
	assert.False(t, errors.Is(err, models.ErrModelUnavailable))

	// the other kind keeps serving
	res, err := uc.Handle(ctx, models.ForecastRequest{Kind: models.KindARIMA, Steps: intp(5)})
	require.NoError(t, err)
	assert.Len(t, res.Values, 5)
}

func TestHandleTimeout(t *testing.T) {
	slow := &stubForecaster{kind: models.KindARIMA, delay: 300 * time.Millisecond}
	uc := newUseCase(t, ForecastConfig{Timeout: 20 * time.Millisecond}, slow)

	start := time.Now()
	_, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindARIMA, Steps: intp(3)})
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestHandleWrapsAdapterFailures(t *testing.T) {
	broken := &stubForecaster{kind: models.KindVAR, err: errors.New("singular matrix")}
	m := &fakeMetrics{}
	uc := NewForecastUseCase(registryOf(broken), nil, nil, m, nil, ForecastConfig{})

	_, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindVAR, Steps: intp(3)})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInference)
	assert.Contains(t, err.Error(), "VAR")
	assert.Contains(t, err.Error(), "singular matrix")

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.forecasts, 1)
	assert.Equal(t, recordedForecast{"VAR", "inference_error"}, m.forecasts[0])
	assert.Equal(t, 1, m.errors)
}

func TestHandleServesRepeatsFromCache(t *testing.T) {
	stub := &stubForecaster{kind: models.KindGARCH}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	m := &fakeMetrics{}
	uc := NewForecastUseCase(registryOf(stub), mc, nil, m, nil, ForecastConfig{CacheTTL: time.Minute})

	req := models.ForecastRequest{Kind: models.KindGARCH, Steps: intp(4)}
	first, err := uc.Handle(context.Background(), req)
	require.NoError(t, err)
	second, err := uc.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), stub.calls.Load())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)
	assert.Equal(t, "cached", m.forecasts[1].outcome)
}

func TestPurgeCacheForcesRecompute(t *testing.T) {
	stub := &stubForecaster{kind: models.KindVAR}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	require.NoError(t, mc.Set(context.Background(), "history:all", "keep", 0))
	uc := NewForecastUseCase(registryOf(stub), mc, nil, nil, nil, ForecastConfig{CacheTTL: time.Minute})

	req := models.ForecastRequest{Kind: models.KindVAR, Steps: intp(2)}
	_, err := uc.Handle(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, uc.PurgeCache(context.Background()))
	_, err = uc.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), stub.calls.Load())
	var s string
	require.NoError(t, mc.Get(context.Background(), "history:all", &s))

	assert.NoError(t, newUseCase(t, ForecastConfig{}).PurgeCache(context.Background()))
}

func TestHandleCollapsesConcurrentCalls(t *testing.T) {
	stub := &stubForecaster{kind: models.KindARIMA, release: make(chan struct{})}
	uc := newUseCase(t, ForecastConfig{}, stub)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindARIMA, Steps: intp(7)})
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(stub.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestHandlePublishesEvents(t *testing.T) {
	stub := &stubForecaster{kind: models.KindLSTM}
	pub := &capturePublisher{}
	uc := NewForecastUseCase(registryOf(stub), nil, pub, nil, nil, ForecastConfig{})

	_, err := uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindLSTM, Input: []any{1.0, 2.0}})
	require.NoError(t, err)
	_, err = uc.Handle(context.Background(), models.ForecastRequest{Kind: models.KindLSTM, Input: []any{}})
	require.Error(t, err)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, models.KindLSTM, ev.Kind)
	assert.Equal(t, 2, ev.InputLen)
	assert.Equal(t, []float64{1, 2}, ev.Values)
	assert.False(t, ev.At.IsZero())
}

func TestHandleAll(t *testing.T) {
	arima := &stubForecaster{kind: models.KindARIMA}
	v := &stubForecaster{kind: models.KindVAR}
	lstm := &stubForecaster{kind: models.KindLSTM}
	uc := newUseCase(t, ForecastConfig{DefaultSteps: 5}, arima, v, lstm)

	res, err := uc.HandleAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Steps)
	assert.Len(t, res.Results, 2)
	assert.Len(t, res.Results[models.KindARIMA].Values, 5)
	assert.Contains(t, res.Errors, models.KindGARCH)
	assert.NotContains(t, res.Results, models.KindLSTM)
	assert.Zero(t, lstm.calls.Load())

	_, err = uc.HandleAll(context.Background(), intp(0))
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}
