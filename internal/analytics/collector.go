// Package analytics records what readers search for. The searcher tracks one
// event per query through a Collector; an Aggregator folds events into
// counters, latency percentiles and the most frequent (and most frequently
// fruitless) queries.
package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

// Sink receives tracked events off the request path.
type Sink interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Collector struct {
	sink    Sink
	eventCh chan any
	logger  *slog.Logger
	done    chan struct{}
}

func NewCollector(sink Sink, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan any, bufferSize),
		logger:  slog.Default().With("component", "analytics-collector"),
		done:    make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event without blocking. Events are dropped when the
// buffer is full.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event any) {
	if err := c.sink.Publish(ctx, kafka.Event{Key: EventKey(event), Value: event}); err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
