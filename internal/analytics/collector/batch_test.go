package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

type flakySink struct {
	mu      sync.Mutex
	fail    bool
	batches [][]kafka.Event
}

func (s *flakySink) PublishBatch(_ context.Context, events []kafka.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker down")
	}
	s.batches = append(s.batches, events)
	return nil
}

func TestFlushDeliversBufferedEvents(t *testing.T) {
	sink := &flakySink{}
	bc := NewBatchCollector(sink, 10, time.Hour)
	bc.Track(analytics.SearchEvent{Query: "narm"})
	bc.Track(analytics.BuildEvent{Generation: "g1"})
	assert.Equal(t, 2, bc.BufferLen())

	bc.Flush(context.Background())
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "narm", sink.batches[0][0].Key)
	assert.Equal(t, "g1", sink.batches[0][1].Key)
	assert.Zero(t, bc.BufferLen())
}

func TestFailedFlushRequeuesWithinBound(t *testing.T) {
	sink := &flakySink{fail: true}
	bc := NewBatchCollector(sink, 2, time.Hour)
	for i := 0; i < 7; i++ {
		bc.mu.Lock()
		bc.buffer = append(bc.buffer, kafka.Event{Key: fmt.Sprintf("q%d", i)})
		bc.mu.Unlock()
	}
	bc.Flush(context.Background())
	assert.Equal(t, 6, bc.BufferLen())
	assert.Equal(t, int64(1), bc.Dropped())

	sink.fail = false
	bc.Flush(context.Background())
	assert.Zero(t, bc.BufferLen())
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 6)
	assert.Equal(t, "q1", sink.batches[0][0].Key, "the oldest event is dropped first")
}

func TestStartFlushesOnShutdown(t *testing.T) {
	sink := &flakySink{}
	bc := NewBatchCollector(sink, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)
	bc.Track(analytics.SearchEvent{Query: "sasrec"})
	cancel()
	bc.Close()
	require.Len(t, sink.batches, 1)
}

func TestFullBatchFlushesBeforeInterval(t *testing.T) {
	sink := &flakySink{}
	bc := NewBatchCollector(sink, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bc.Start(ctx)

	bc.Track(analytics.SearchEvent{Query: "gru4rec"})
	bc.Track(analytics.SearchEvent{Query: "bert4rec"})
	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.batches) == 1
	}, time.Second, 5*time.Millisecond)
}
