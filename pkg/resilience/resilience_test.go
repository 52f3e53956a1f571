package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

var errBroker = errors.New("broker unreachable")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errBroker
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return errBroker
	})
	assert.ErrorIs(t, err, errBroker)
	assert.Equal(t, 2, attempts)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "record", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		return errBroker
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerTransitions(t *testing.T) {
	var states []State
	cb := NewCircuitBreaker("catalog", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange:    func(_ string, s State) { states = append(states, s) },
	})
	fail := func() error { return errBroker }

	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, states)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NoError(t, WithTimeout(context.Background(), 0, "unbounded", func(context.Context) error { return nil }))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "record", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return Permanent(errBroker)
	})
	assert.ErrorIs(t, err, errBroker)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, Permanent(nil))
}

func TestCircuitBreakerIgnoresCancelAndPermanent(t *testing.T) {
	cb := NewCircuitBreaker("catalog", CircuitBreakerConfig{FailureThreshold: 1})
	assert.ErrorIs(t, cb.Execute(func() error { return context.Canceled }), context.Canceled)
	assert.Error(t, cb.Execute(func() error { return Permanent(errBroker) }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("kafka", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return clock }

	assert.ErrorIs(t, cb.Execute(func() error { return errBroker }), errBroker)
	require.Equal(t, StateOpen, cb.GetState())

	clock = clock.Add(time.Minute)
	assert.ErrorIs(t, cb.Execute(func() error { return errBroker }), errBroker)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}
