package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// WithTimeout bounds fn to timeout. fn must honour its context; if it has not
// returned by the deadline WithTimeout returns without waiting for it, with an
// error matching both apperrors.ErrTimeout and context.DeadlineExceeded.
// A zero timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	var err error
	select {
	case err = <-done:
		if err == nil || tctx.Err() == nil {
			return err
		}
	case <-tctx.Done():
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: cancelled: %w", name, ctx.Err())
	}
	return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
}
