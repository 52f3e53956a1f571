// Package consumer reacts to index lifecycle events on Kafka. The indexer
// consumes content.changed to schedule rebuilds; searchers consume
// index.complete to load the new generation and drop cached results.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

// Rebuilder is implemented by *indexer.Engine.
type Rebuilder interface {
	TriggerRebuild()
}

// Reloader is implemented by *indexer.Engine.
type Reloader interface {
	Reload(ctx context.Context) (*index.SearchIndex, error)
}

// Invalidator is implemented by *cache.QueryCache.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// IndexConsumer wraps a Kafka consumer for the lifetime of a service.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// Check reports the consume loop's health.
func (ic *IndexConsumer) Check(ctx context.Context) health.ComponentHealth {
	return ic.consumer.Check(ctx)
}

// Close releases the underlying reader.
func (ic *IndexConsumer) Close() error {
	return ic.consumer.Close()
}

// HandleContentChanged returns a MessageHandler that schedules a rebuild for
// every content.changed event. Undecodable messages are logged and skipped.
func HandleContentChanged(r Rebuilder) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.ContentChangedEvent](value)
		if err != nil {
			logger.Error("failed to decode content event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Info("content changed, scheduling rebuild",
			"paths", len(event.Paths),
			"reason", event.Reason,
		)
		r.TriggerRebuild()
		return nil
	}
}

// HandleIndexComplete returns a MessageHandler that reloads the index after a
// new generation is announced and then invalidates cached results. inv may be
// nil. A failed reload is returned so the message is not committed.
func HandleIndexComplete(r Reloader, inv Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		idx, err := r.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading generation %s: %w", event.Generation, err)
		}
		if idx.NumDocs() != event.Documents {
			logger.Warn("loaded index differs from announced generation",
				"generation", event.Generation,
				"announced_docs", event.Documents,
				"loaded_docs", idx.NumDocs(),
			)
		}
		if inv != nil {
			n, err := inv.Invalidate(ctx)
			if err != nil {
				logger.Warn("cache invalidation failed", "error", err)
			} else {
				logger.Info("query cache invalidated", "keys", n)
			}
		}
		logger.Info("generation loaded",
			"generation", event.Generation,
			"documents", idx.NumDocs(),
		)
		return nil
	}
}
