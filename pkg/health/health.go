// Package health runs dependency checks for the docindex services and serves
// the aggregate as liveness and readiness probes. A searcher is ready once an
// index is loaded; Redis, Kafka and Postgres only degrade it.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const (
	defaultCheckTimeout = 2 * time.Second
	defaultCacheTTL     = time.Second
)

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker runs the registered checks concurrently, each under its own
// timeout, and caches the report briefly so frequent probes do not hammer
// the dependencies.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]Check
	checkTimeout time.Duration
	cacheTTL     time.Duration
	started      time.Time

	cacheMu  sync.Mutex
	cached   Report
	cachedAt time.Time

	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]Check),
		checkTimeout: defaultCheckTimeout,
		cacheTTL:     defaultCacheTTL,
		started:      time.Now(),
		logger:       slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check and reports the worst status. A check that does
// not return within the per-check timeout is reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.runOne(ctx, check)
		}()
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, name := range names {
		report.Components[name] = results[i]
		switch results[i].Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	if report.Status != StatusUp {
		c.logger.Warn("health check not up", "status", report.Status)
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, check Check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	start := time.Now()
	done := make(chan ComponentHealth, 1)
	go func() { done <- check(ctx) }()

	var result ComponentHealth
	select {
	case result = <-done:
	case <-ctx.Done():
		result = ComponentHealth{Status: StatusDown, Message: "check timed out"}
	}
	result.Latency = time.Since(start).Round(time.Millisecond).String()
	return result
}

// Cached returns the last report if it is younger than the cache TTL and
// runs the checks otherwise.
func (c *Checker) Cached(ctx context.Context) Report {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.cacheTTL {
		return c.cached
	}
	c.cached = c.Run(ctx)
	c.cachedAt = time.Now()
	return c.cached
}

// Mount mounts the liveness and readiness probes on mux.
func (c *Checker) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", c.LiveHandler())
	mux.HandleFunc("GET /health/ready", c.ReadyHandler())
}

// LiveHandler answers 200 for as long as the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers 503 only when a component is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Cached(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

// PingCheck turns a ping function into a Check. A failing ping reports
// failStatus, so optional dependencies can degrade rather than fail the
// service.
func PingCheck(ping func(ctx context.Context) error, failStatus Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failStatus, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}
