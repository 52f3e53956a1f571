package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func up(context.Context) error { return nil }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("index", PingCheck(up, StatusDown))
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("connection refused") }, StatusDegraded))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
	assert.Equal(t, StatusUp, report.Components["index"].Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.cacheTTL = 0
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("timeout") }, StatusDegraded))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded is still ready")

	c.Register("index", PingCheck(func(context.Context) error { return errors.New("not loaded") }, StatusDown))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"down"`)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestSlowCheckIsReportedDown(t *testing.T) {
	c := NewChecker()
	c.checkTimeout = 20 * time.Millisecond
	c.Register("kafka", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ComponentHealth{Status: StatusUp}
	})
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "check timed out", report.Components["kafka"].Message)
}

func TestCachedReusesRecentReport(t *testing.T) {
	c := NewChecker()
	c.cacheTTL = time.Minute
	calls := 0
	c.Register("index", func(context.Context) ComponentHealth {
		calls++
		return ComponentHealth{Status: StatusUp}
	})
	c.Cached(context.Background())
	c.Cached(context.Background())
	assert.Equal(t, 1, calls)
}

func TestMount(t *testing.T) {
	mux := http.NewServeMux()
	NewChecker().Mount(mux)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	}
}
