package analytics

import (
	"strings"
	"time"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventIndexBuild EventType = "index_build"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Ranking   string    `json:"ranking"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type BuildEvent struct {
	Type       EventType `json:"type"`
	Generation string    `json:"generation"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	SizeBytes  int64     `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventKey picks the Kafka key for an event: the normalised query for
// searches, so counts for one query stay on one partition, and the
// generation for builds.
func EventKey(event any) string {
	switch e := event.(type) {
	case SearchEvent:
		return normalizeQuery(e.Query)
	case *SearchEvent:
		return normalizeQuery(e.Query)
	case BuildEvent:
		return e.Generation
	case *BuildEvent:
		return e.Generation
	default:
		return ""
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
