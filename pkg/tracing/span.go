// Package tracing records in-process span trees carried through a
// context. A finished tree is written to slog, one record per span, which is
// enough to see where an index build or a query spent its time.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed step. Children are appended as they start.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// StartSpan begins a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{Name: name, TraceID: traceID, StartTime: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan begins a span under the one in ctx. Without a parent it
// starts an unattached span, so callers never need to check.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{Name: name, StartTime: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// FromContext returns the current span, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End records the duration.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

// SetAttr attaches a key-value pair logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns the direct child spans in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the tree at debug level, parents first.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.Debug("span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
