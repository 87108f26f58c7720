package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"polis/internal/platform/config"
	"polis/internal/policy/models"
)

// Handler reacts to a domain event. The policy service satisfies this.
type Handler interface {
	HandleEvent(ctx context.Context, event models.Event) error
}

// Consumer runs the event reaction loop: it polls the events topic in a
// consumer group and hands each decoded event to the handler. Handler
// failures are logged and skipped rather than retried forever; the
// operations they drive are idempotent, so the next status change replays
// them.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// NewConsumer joins the configured consumer group on the events topic.
func NewConsumer(cfg config.Kafka, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.EventsTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.dispatch(ctx, record)
		})
	}
}

func (c *Consumer) dispatch(ctx context.Context, record *kgo.Record) {
	event, err := unmarshalEvent(record.Value)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable event record",
			"topic", record.Topic, "offset", record.Offset, "error", err)
		return
	}
	if err := c.handler.HandleEvent(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, "event reaction failed",
			"event", event.EventName(),
			"policy_reference", event.PolicyReference(),
			"error", err)
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
