package logger

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) snapshot() [][]AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), p.batches...)
}

func TestCollectorFoldsRepeatedEntries(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	fields := map[string]interface{}{"kind": "LSTM"}
	for range 3 {
		c.AddLog("error", "inference failed", fields, "usecase/forecast.go:10")
	}
	c.AddLog("error", "inference failed", map[string]interface{}{"kind": "VAR"}, "usecase/forecast.go:10")
	assert.Equal(t, 2, c.Pending())
	assert.Empty(t, pub.snapshot())

	// Close publishes the remainder before returning
	c.Close()
	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"logs"}, pub.topics)

	entries := batches[0]
	require.Len(t, entries, 2)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	assert.Equal(t, 3, entries[0].Count)
	assert.Equal(t, "LSTM", entries[0].Fields["kind"])
	assert.False(t, entries[0].LastSeen.Before(entries[0].FirstSeen))
	assert.Equal(t, 1, entries[1].Count)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	assert.Equal(t, 1, c.Pending())
	c.AddLog("error", "b", nil, "x.go:2")
	assert.Equal(t, 0, c.Pending())

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.snapshot()[0], 2)
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: 10 * time.Millisecond, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Pending())
}

func TestLoggerCollectsOnlyErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWriter(io.Discard, "debug")
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	for range 2 {
		l.Error("history query error", String("backend", "sqlite"))
	}
	l.Warn("history preload failed")
	l.Info("history loaded")
	l.RemoveCollector()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	e := batches[0][0]
	assert.Equal(t, "error", e.Level)
	assert.Equal(t, 2, e.Count)
	assert.Equal(t, "sqlite", e.Fields["backend"])
	assert.Contains(t, e.Caller, "collector_test.go")
}
