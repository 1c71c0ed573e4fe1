package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	reg := prometheus.NewRegistry()
	p, err := NewProducer(WithWriter(w), WithRegisterer(reg))
	require.NoError(t, err)

	err = p.Publish(context.Background(), "forecasts", []byte("ARIMA"), map[string]any{"steps": 3})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "forecasts", w.msgs[0].Topic)
	assert.Equal(t, []byte("ARIMA"), w.msgs[0].Key)
	assert.JSONEq(t, `{"steps":3}`, string(w.msgs[0].Value))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("forecasts", "snappy", "ok")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducerPublishBatchPassesRawBytes(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(WithWriter(w), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	err = p.PublishBatch(context.Background(), "t", []Message{{Value: []byte("a")}, {Value: "b"}})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "a", string(w.msgs[0].Value))
	assert.Equal(t, "b", string(w.msgs[1].Value))
}

func TestProducerRecordsErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p, err := NewProducer(WithWriter(w), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	err = p.PublishMessage(context.Background(), "logs", []string{"x"})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.errs.WithLabelValues("logs")))
}

func TestProducerSharesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewProducer(WithWriter(&fakeWriter{}), WithRegisterer(reg))
	require.NoError(t, err)
	_, err = NewProducer(WithWriter(&fakeWriter{}), WithRegisterer(reg))
	assert.NoError(t, err)
}

func TestNewProducerNeedsBrokers(t *testing.T) {
	_, err := NewProducer(WithRegisterer(prometheus.NewRegistry()))
	assert.Error(t, err)
}
