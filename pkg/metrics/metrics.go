// Package metrics defines the Prometheus collectors shared by the indexer and
// the searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Every collector is prefixed docindex_ so dashboards can tell the services
// apart from whatever else shares the Prometheus server.
const namespace = "docindex"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	IndexReloadsTotal    *prometheus.CounterVec
	IndexDocuments       prometheus.Gauge
	IndexTerms           *prometheus.GaugeVec
	IndexSizeBytes       prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers the collectors with reg and serves them from
// gatherer. Tests pass a fresh prometheus.NewRegistry() for both.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search query latency in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of results returned per search query.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of query cache misses.",
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_builds_total",
				Help:      "Total index builds by status.",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_duration_seconds",
				Help:      "Time to load, build and write an index.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_reloads_total",
				Help:      "Total index artifact reloads by status.",
			},
			[]string{"status"},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_documents",
				Help:      "Documents in the active index.",
			},
		),
		IndexTerms: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_terms",
				Help:      "Distinct terms in the active index by table (terms, titleterms).",
			},
			[]string{"table"},
		),
		IndexSizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_size_bytes",
				Help:      "Size of the last written index artifact.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.IndexReloadsTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.IndexSizeBytes,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
