package repository

import (
	"context"

	"BrentCast/internal/domain/models"
	domrepo "BrentCast/internal/domain/repository"
	pkgkafka "BrentCast/pkg/kafka"
)

// KafkaEventPublisher writes forecast events keyed by model kind.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

type forecastEventMessage struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Steps      int       `json:"steps,omitempty"`
	InputLen   int       `json:"input_len,omitempty"`
	Values     []float64 `json:"values"`
	Cached     bool      `json:"cached"`
	DurationMs int64     `json:"duration_ms"`
	At         int64     `json:"at"`
}

func (p *KafkaEventPublisher) PublishForecast(ctx context.Context, ev *models.ForecastEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Kind), forecastEventMessage{
		ID:         ev.ID,
		Kind:       string(ev.Kind),
		Steps:      ev.Steps,
		InputLen:   ev.InputLen,
		Values:     ev.Values,
		Cached:     ev.Cached,
		DurationMs: ev.DurationMs,
		At:         ev.At.UnixMilli(),
	})
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopEventPublisher drops events when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishForecast(context.Context, *models.ForecastEvent) error { return nil }

func (NoopEventPublisher) Close() error { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domrepo.EventPublisher = NoopEventPublisher{}
)
