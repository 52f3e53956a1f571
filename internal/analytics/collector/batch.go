// Package collector buffers search events and hands them to a sink in
// batches, either when the batch fills up or on a timer.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

// maxBacklog is how many batches' worth of events survive failed flushes.
const maxBacklog = 3

// BatchSink is implemented by kafka.Producer and analytics.Aggregator.
type BatchSink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// BatchCollector keeps search tracking off the request path: Track only
// appends to a buffer, and a single loop flushes it when a batch fills up or
// the interval passes. While the sink is failing the oldest events are
// dropped first.
type BatchCollector struct {
	sink          BatchSink
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	buffer  []kafka.Event
	flushMu sync.Mutex
	full    chan struct{}
	done    chan struct{}
	dropped atomic.Int64

	logger *slog.Logger
}

func NewBatchCollector(sink BatchSink, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		sink:          sink,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]kafka.Event, 0, batchSize),
		full:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "batch-collector"),
	}
}

// Start runs the flush loop until ctx is cancelled, then flushes once more.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bc.Flush(ctx)
			case <-bc.full:
				bc.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started", "batch_size", bc.batchSize, "flush_interval", bc.flushInterval)
}

// Track buffers an event keyed by analytics.EventKey.
func (bc *BatchCollector) Track(event any) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: analytics.EventKey(event), Value: event})
	ready := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if ready {
		select {
		case bc.full <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Dropped returns how many events were discarded because the sink kept
// failing.
func (bc *BatchCollector) Dropped() int64 {
	return bc.dropped.Load()
}

// Flush hands the buffer to the sink. A failed batch goes back in front of
// anything tracked meanwhile.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	if err := bc.sink.PublishBatch(ctx, batch); err != nil {
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		var dropped int
		if limit := bc.batchSize * maxBacklog; len(bc.buffer) > limit {
			dropped = len(bc.buffer) - limit
			bc.buffer = bc.buffer[dropped:]
		}
		bc.mu.Unlock()
		bc.dropped.Add(int64(dropped))
		bc.logger.Error("batch flush failed", "events", len(batch), "dropped", dropped, "error", err)
		return
	}
	bc.logger.Debug("batch flushed", "events", len(batch))
}
