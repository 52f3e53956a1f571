package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
	Limit(requested int) int
}

// IndexProvider exposes the active index and reloads it from its artifact.
type IndexProvider interface {
	Current() *index.SearchIndex
	Reload(ctx context.Context) (*index.SearchIndex, error)
}

// EventTracker receives one analytics event per search.
type EventTracker interface {
	Track(event any)
}

type Handler struct {
	executor  SearchExecutor
	indexes   IndexProvider
	cache     *cache.QueryCache
	collector EventTracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds a Handler. queryCache, collector and m may be nil.
func New(exec SearchExecutor, indexes IndexProvider, queryCache *cache.QueryCache, collector EventTracker, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:  exec,
		indexes:   indexes,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.Documents)
	mux.HandleFunc("GET /api/v1/documents/{name...}", h.Document)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeErr(w, apperrors.Newf(apperrors.ErrInvalidInput, 0, "query parameter 'q' is required"))
		return
	}

	requested := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeErr(w, apperrors.Newf(apperrors.ErrInvalidInput, 0, "limit must be a positive integer"))
			return
		}
		requested = parsed
	}
	limit := h.executor.Limit(requested)
	plan := parser.Parse(query)

	var result *executor.SearchResult
	var err error
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, limit, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}
	latency := time.Since(start)

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.observe("error", cacheHit, latency, 0)
		if errors.Is(err, context.DeadlineExceeded) {
			h.writeErr(w, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "search did not finish in time"))
			return
		}
		h.writeErr(w, err)
		return
	}

	resultType := "miss"
	switch {
	case result.TotalHits == 0:
		resultType = "zero_result"
	case cacheHit:
		resultType = "hit"
	}
	h.observe(resultType, cacheHit, latency, len(result.Results))

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		if result.TotalHits == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     plan.Terms,
			Ranking:   result.Ranking,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	if h.cache != nil {
		w.Header().Set(middleware.CacheHeader, cacheStatus(cacheHit))
	}
	h.writeJSON(w, http.StatusOK, result)
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) observe(resultType string, cacheHit bool, latency time.Duration, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

type documentsResponse struct {
	Stats     index.Stats      `json:"stats"`
	Documents []index.Document `json:"documents"`
}

func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	idx := h.indexes.Current()
	if idx == nil {
		h.writeErr(w, apperrors.ErrIndexNotLoaded)
		return
	}
	docs := make([]index.Document, 0, idx.NumDocs())
	for i := 0; i < idx.NumDocs(); i++ {
		doc, _ := idx.Document(i)
		docs = append(docs, doc)
	}
	h.writeJSON(w, http.StatusOK, documentsResponse{Stats: idx.Stats(), Documents: docs})
}

type sectionResponse struct {
	Title  string `json:"title"`
	Anchor string `json:"anchor,omitempty"`
}

type documentResponse struct {
	index.Document
	Sections []sectionResponse `json:"sections"`
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	idx := h.indexes.Current()
	if idx == nil {
		h.writeErr(w, apperrors.ErrIndexNotLoaded)
		return
	}
	name := r.PathValue("name")
	i, ok := idx.DocIndex(name)
	if !ok {
		h.writeErr(w, apperrors.Newf(apperrors.ErrDocumentNotFound, 0, "no document named %q", name))
		return
	}
	doc, _ := idx.Document(i)
	resp := documentResponse{Document: doc, Sections: []sectionResponse{}}
	for _, title := range sortedTitles(idx) {
		for _, ref := range idx.AllTitles[title] {
			if ref.Doc == i && ref.Anchor != "" {
				resp.Sections = append(resp.Sections, sectionResponse{Title: title, Anchor: ref.Anchor})
			}
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	idx, err := h.indexes.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("index reload failed", "error", err)
		h.writeErr(w, err)
		return
	}
	resp := map[string]any{"status": "reloaded", "stats": idx.Stats()}
	if h.cache != nil {
		deleted, err := h.cache.Invalidate(r.Context())
		if err != nil {
			h.logger.Error("cache invalidation after reload failed", "error", err)
		}
		resp["cache_keys_deleted"] = deleted
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeErr(w, apperrors.Newf(apperrors.ErrUnavailable, 0, "caching is disabled"))
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeErr(w, apperrors.Newf(apperrors.ErrUnavailable, 0, "cache invalidation failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func sortedTitles(idx *index.SearchIndex) []string {
	titles := make([]string, 0, len(idx.AllTitles))
	for t := range idx.AllTitles {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), apperrors.Body(err))
}
