package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

const (
	// maxLatencies bounds the latency sample kept for percentiles.
	maxLatencies = 10000
	defaultTop   = 10
	maxTop       = 100
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	TotalBuilds       int64            `json:"total_builds"`
	LastGeneration    string           `json:"last_generation,omitempty"`
	LastBuild         *BuildSummary    `json:"last_build,omitempty"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	SearchesByRanking map[string]int64 `json:"searches_by_ranking,omitempty"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

// BuildSummary describes the most recent index build.
type BuildSummary struct {
	Generation string    `json:"generation"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	SizeBytes  int64     `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	BuiltAt    time.Time `json:"built_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Snapshot is a persisted copy of the aggregated stats.
type Snapshot struct {
	ID         int64           `json:"id"`
	CapturedAt time.Time       `json:"captured_at"`
	Stats      AggregatedStats `json:"stats"`
}

// Aggregator is itself a Sink, so a searcher running without Kafka can
// aggregate its own events in process.
type Aggregator struct {
	totalSearches atomic.Int64
	totalBuilds   atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	zeroResults   atomic.Int64

	mu                sync.RWMutex
	latencies         latencyWindow
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	byRanking         map[string]int64
	lastBuild         *BuildSummary
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         latencyWindow{samples: make([]int64, 0, 1024)},
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		byRanking:         make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Publish records an event directly.
func (a *Aggregator) Publish(_ context.Context, event kafka.Event) error {
	switch e := event.Value.(type) {
	case SearchEvent:
		a.RecordSearch(e)
	case *SearchEvent:
		a.RecordSearch(*e)
	case BuildEvent:
		a.RecordBuild(e)
	case *BuildEvent:
		a.RecordBuild(*e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "key", event.Key)
	}
	return nil
}

// HandleEvent decodes analytics messages consumed from Kafka. Undecodable
// messages are logged and skipped so they never block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var probe struct {
			Type EventType `json:"type"`
		}
		if err := sonic.Unmarshal(value, &probe); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		if probe.Type == EventIndexBuild {
			event, err := kafka.DecodeJSON[BuildEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode build event", "error", err)
				return nil
			}
			agg.RecordBuild(event)
			return nil
		}
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode search event", "error", err)
			return nil
		}
		agg.RecordSearch(event)
		return nil
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	zero := event.TotalHits == 0
	if zero {
		a.zeroResults.Add(1)
	}
	query := normalizeQuery(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.latencies.add(event.LatencyMs)
	a.queryCounts[query]++
	if zero {
		a.zeroResultQueries[query]++
	}
	if event.Ranking != "" {
		a.byRanking[event.Ranking]++
	}
}

func (a *Aggregator) RecordBuild(event BuildEvent) {
	a.totalBuilds.Add(1)
	builtAt := event.Timestamp
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	a.mu.Lock()
	a.lastBuild = &BuildSummary{
		Generation: event.Generation,
		Documents:  event.Documents,
		Terms:      event.Terms,
		SizeBytes:  event.SizeBytes,
		LatencyMs:  event.LatencyMs,
		BuiltAt:    builtAt,
	}
	a.mu.Unlock()
}

// Restore seeds the counters from a persisted snapshot so totals survive a
// restart. Latency samples are not persisted and start out empty.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.totalSearches.Store(s.TotalSearches)
	a.totalBuilds.Store(s.TotalBuilds)
	a.cacheHits.Store(s.CacheHits)
	a.cacheMisses.Store(s.CacheMisses)
	a.zeroResults.Store(s.ZeroResultCount)

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case s.LastBuild != nil:
		build := *s.LastBuild
		a.lastBuild = &build
	case s.LastGeneration != "":
		a.lastBuild = &BuildSummary{Generation: s.LastGeneration}
	}
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] = q.Count
	}
	for _, q := range s.ZeroResultQueries {
		a.zeroResultQueries[q.Query] = q.Count
	}
	for ranking, n := range s.SearchesByRanking {
		a.byRanking[ranking] = n
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(defaultTop)
}

// StatsTop is Stats with the query rankings cut to n entries.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	if n <= 0 {
		n = defaultTop
	}
	n = min(n, maxTop)

	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		TotalBuilds:     a.totalBuilds.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if a.lastBuild != nil {
		build := *a.lastBuild
		stats.LastBuild = &build
		stats.LastGeneration = build.Generation
	}
	if len(a.byRanking) > 0 {
		stats.SearchesByRanking = maps.Clone(a.byRanking)
	}
	stats.AvgLatencyMs, stats.P50LatencyMs, stats.P95LatencyMs, stats.P99LatencyMs = a.latencies.summary()
	stats.TopQueries = topN(a.queryCounts, n)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, n)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// latencyWindow keeps the most recent maxLatencies samples in a ring.
type latencyWindow struct {
	samples []int64
	next    int
}

func (w *latencyWindow) add(ms int64) {
	if len(w.samples) < maxLatencies {
		w.samples = append(w.samples, ms)
		return
	}
	w.samples[w.next] = ms
	w.next = (w.next + 1) % maxLatencies
}

// summary returns the mean and the 50th, 95th and 99th percentiles.
func (w *latencyWindow) summary() (avg float64, p50, p95, p99 int64) {
	if len(w.samples) == 0 {
		return 0, 0, 0, 0
	}
	sorted := slices.Clone(w.samples)
	slices.Sort(sorted)
	var sum int64
	for _, ms := range sorted {
		sum += ms
	}
	return float64(sum) / float64(len(sorted)), percentile(sorted, 50), percentile(sorted, 95), percentile(sorted, 99)
}

func percentile(sorted []int64, pct int) int64 {
	idx := min(pct*len(sorted)/100, len(sorted)-1)
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(x, y QueryCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Query, y.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// PublishBatch records every event of a batch.
func (a *Aggregator) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, event := range events {
		if err := a.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
