package middleware

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
)

const timeoutBody = `{"error":"request timed out","code":"timeout"}` + "\n"

// Timeout bounds each request. A handler still running at the deadline loses
// the response to a 504 in the same JSON shape the API handlers use.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w, header: make(http.Header)}
			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()
			select {
			case <-done:
				tw.WriteHeader(http.StatusOK)
			case <-ctx.Done():
				if tw.claim() {
					logger.FromContext(r.Context()).Warn("request timed out",
						"method", r.Method, "path", r.URL.Path, "timeout", timeout)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					io.WriteString(w, timeoutBody)
				}
			}
		})
	}
}

// timeoutWriter lets exactly one of the handler and the timeout own the
// response. The handler writes headers into its own map, which reaches the
// real writer only if the handler writes before the deadline.
type timeoutWriter struct {
	http.ResponseWriter
	header   http.Header
	mu       sync.Mutex
	written  bool
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

// claim marks the response as timed out unless the handler already wrote.
func (tw *timeoutWriter) claim() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.written {
		return false
	}
	tw.timedOut = true
	return true
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	if tw.timedOut || tw.written {
		return
	}
	tw.written = true
	dst := tw.ResponseWriter.Header()
	for k, v := range tw.header {
		dst[k] = append([]string(nil), v...)
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.writeHeaderLocked(http.StatusOK)
	return tw.ResponseWriter.Write(b)
}
