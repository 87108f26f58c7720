package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"polis/internal/platform/config"
	"polis/internal/policy/models"
)

// Publisher delivers domain events to the events topic synchronously, so a
// publish failure surfaces to the caller before the HTTP response goes out.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher connects a producer-only client to the configured brokers.
func NewPublisher(cfg config.Kafka) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.EventsTopic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: cfg.EventsTopic}, nil
}

// Publish sends one event, keyed by policy reference so per-policy ordering
// holds within a partition.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	value, err := marshalEvent(event)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PolicyReference().String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", event.EventName(), err)
	}
	return nil
}

// Close flushes pending records and tears down the client.
func (p *Publisher) Close() {
	p.client.Close()
}
