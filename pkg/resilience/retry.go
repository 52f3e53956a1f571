package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls Retry. Zero fields take the defaults: three attempts
// starting at 100ms, doubling up to 10s, with 10% jitter.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Retry returns it after the
// current attempt. A catalog row that violates a constraint is permanent, a
// dropped connection is not.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts
// run out or ctx is done. The returned error wraps the last failure.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: %w", name, perm.err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
		delay := cfg.delay(attempt)
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", lastErr, "next_delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted during backoff: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("%s: all %d attempts failed: %w", name, cfg.MaxAttempts, lastErr)
}

func (c RetryConfig) delay(attempt int) time.Duration {
	backoff := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	backoff += backoff * c.JitterFraction * (2*rand.Float64() - 1)
	switch {
	case backoff > float64(c.MaxDelay):
		return c.MaxDelay
	case backoff < 0:
		return c.InitialDelay
	}
	return time.Duration(backoff)
}
