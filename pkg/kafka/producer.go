package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
)

const contentType = "application/json"

// Event is one message. Key picks the partition, so events about the same
// generation or query stay ordered.
type Event struct {
	Key   string
	Value any
}

// Publisher is implemented by Producer; callers depend on it so tests can
// capture events without a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func encode(event Event) (kafka.Message, error) {
	value, err := sonic.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %q: %w", event.Key, err)
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentType)}},
	}, nil
}

// Publish writes one event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events in a single call. Nothing is written if any
// event fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := encode(event)
		if err != nil {
			return err
		}
		messages[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("publish failed", "count", len(messages), "error", err)
		return fmt.Errorf("publishing %d messages to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("published", "count", len(messages))
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
