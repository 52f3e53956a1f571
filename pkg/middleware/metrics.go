// Package middleware holds the HTTP middleware shared by the services.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
)

// Metrics records request count and latency by method, route and status,
// and tracks requests in flight.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path, sw.status)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

const documentsPrefix = "/api/v1/documents/"

// routeLabel keeps the path label bounded: document names collapse to
// {name}, and paths nothing is mounted on collapse to "unmatched".
func routeLabel(path string, status int) string {
	switch {
	case strings.HasPrefix(path, documentsPrefix) && len(path) > len(documentsPrefix):
		return documentsPrefix + "{name}"
	case status == http.StatusNotFound || status == http.StatusMethodNotAllowed:
		if !strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/health/") {
			return "unmatched"
		}
	}
	return path
}
