// Package kafka carries the docindex events: index.complete announcements,
// content.changed rebuild requests and search analytics. It is backed by
// segmentio/kafka-go and values travel as JSON.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
)

// fetchBackoff is how long the loop waits after a failed fetch before asking
// the broker again.
const fetchBackoff = time.Second

// MessageHandler processes one message. Returning an error leaves the
// message uncommitted; handlers skip messages they can never process by
// returning nil.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *slog.Logger

	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer creates a Consumer for topic. A non-empty group overrides the
// configured consumer group, so that every searcher replica can see every
// index.complete event.
func NewConsumer(cfg config.KafkaConfig, topic, group string, handler MessageHandler) *Consumer {
	if group == "" {
		group = cfg.ConsumerGroup
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", group),
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.running.Store(true)
	defer c.running.Store(false)
	c.logger.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			if !sleep(ctx, fetchBackoff) {
				return nil
			}
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition, "offset", msg.Offset,
			"key", string(msg.Key), "value_size", len(msg.Value))

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.failed.Add(1)
			c.logger.Error("message not processed",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		c.processed.Add(1)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Check reports the consume loop as a health component. A stopped loop
// degrades the service; lag is informational.
func (c *Consumer) Check(context.Context) health.ComponentHealth {
	if !c.running.Load() {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "consumer not running"}
	}
	stats := c.reader.Stats()
	return health.ComponentHealth{
		Status: health.StatusUp,
		Message: fmt.Sprintf("lag %d, processed %d, failed %d",
			stats.Lag, c.processed.Load(), c.failed.Load()),
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := sonic.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
