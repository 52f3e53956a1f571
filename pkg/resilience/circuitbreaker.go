// Package resilience guards calls to the optional backing services (the build
// catalog, Kafka and Redis) so that an outage degrades a build or a query
// instead of failing it.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls when a breaker opens and how it recovers.
// Zero fields take the defaults: open after 5 consecutive failures, probe
// again after 30s with a single request.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange is called with the new state after every transition,
	// under the breaker's lock.
	OnStateChange func(name string, state State)
}

// CircuitBreaker opens after FailureThreshold consecutive failures and
// rejects calls until ResetTimeout has passed, then lets probes through
// half-open. Cancelled calls and Permanent errors say nothing about the
// dependency's health and are not counted.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probesInUse int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.probesInUse = 1
		return nil
	case StateHalfOpen:
		if cb.probesInUse >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probesInUse++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen {
		cb.probesInUse--
	}

	var perm *permanentError
	if err != nil && (errors.Is(err, context.Canceled) || errors.As(err, &perm)) {
		return
	}
	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.open()
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.probesInUse = 0
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(s State) {
	if s == cb.state {
		return
	}
	cb.logger.Warn("circuit state changed", "from", cb.state, "to", s, "consecutive_failures", cb.failures)
	cb.state = s
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, s)
	}
}
