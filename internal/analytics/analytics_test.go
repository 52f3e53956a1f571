package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

type recordingSink struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (s *recordingSink) Publish(_ context.Context, event kafka.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func TestCollectorPublishesTrackedEvents(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 16)
	c.Start(context.Background())
	c.Track(SearchEvent{Type: EventSearch, Query: " NARM"})
	c.Track(BuildEvent{Type: EventIndexBuild, Generation: "g1"})
	c.Close()

	require.Len(t, sink.events, 2)
	assert.Equal(t, "narm", sink.events[0].Key)
	assert.Equal(t, "g1", sink.events[1].Key)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	ctx := context.Background()
	for _, q := range []string{"attention", "Attention ", "narm", "gru4rec"} {
		hits := 3
		if q == "gru4rec" {
			hits = 0
		}
		require.NoError(t, agg.Publish(ctx, kafka.Event{Value: SearchEvent{Query: q, TotalHits: hits, LatencyMs: 4}}))
	}
	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: &SearchEvent{Query: "narm", TotalHits: 1, CacheHit: true, LatencyMs: 1}}))
	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: BuildEvent{Generation: "g7"}}))

	stats := agg.Stats()
	assert.Equal(t, int64(5), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalBuilds)
	assert.Equal(t, "g7", stats.LastGeneration)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(4), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, []QueryCount{{"attention", 2}, {"narm", 2}, {"gru4rec", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"gru4rec", 1}}, stats.ZeroResultQueries)
	assert.Equal(t, int64(4), stats.P50LatencyMs)
}

func TestHandleEventDecodesBothKinds(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	search, err := sonic.Marshal(SearchEvent{Type: EventSearch, Query: "sasrec", TotalHits: 2, Timestamp: time.Now()})
	require.NoError(t, err)
	build, err := sonic.Marshal(BuildEvent{Type: EventIndexBuild, Generation: "g2"})
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), []byte("search"), search))
	require.NoError(t, handle(context.Background(), []byte("build"), build))
	require.NoError(t, handle(context.Background(), nil, []byte("not json")))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, "g2", stats.LastGeneration)
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "bert4rec", TotalHits: 1})
	rec := httptest.NewRecorder()
	NewHandler(agg, nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)
}

func TestRestoreSeedsCounters(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches:     40,
		TotalBuilds:       3,
		LastGeneration:    "1c0ffee1",
		CacheHits:         10,
		CacheMisses:       30,
		ZeroResultCount:   2,
		TopQueries:        []QueryCount{{"attention", 9}},
		ZeroResultQueries: []QueryCount{{"gru4rec", 2}},
	})
	agg.RecordSearch(SearchEvent{Query: "attention", TotalHits: 4})

	stats := agg.Stats()
	assert.Equal(t, int64(41), stats.TotalSearches)
	assert.Equal(t, int64(3), stats.TotalBuilds)
	assert.Equal(t, "1c0ffee1", stats.LastGeneration)
	assert.Equal(t, int64(31), stats.CacheMisses)
	assert.Equal(t, []QueryCount{{"attention", 10}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"gru4rec", 2}}, stats.ZeroResultQueries)
}

type fakeSnapshots struct {
	snaps []Snapshot
	limit int
}

func (f *fakeSnapshots) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	f.limit = limit
	return f.snaps, nil
}

func TestHandlerRoutes(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"narm", "sasrec", "bert4rec"} {
		agg.RecordSearch(SearchEvent{Query: q, TotalHits: 1})
	}
	store := &fakeSnapshots{snaps: []Snapshot{{ID: 4, Stats: AggregatedStats{TotalSearches: 2}}}}
	mux := http.NewServeMux()
	NewHandler(agg, store).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Len(t, stats.TopQueries, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_input"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.limit)
	var body struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, int64(4), body.Snapshots[0].ID)

	mux = http.NewServeMux()
	NewHandler(agg, nil).Register(mux)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsReportLastBuildAndRanking(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "narm", Ranking: "widget", TotalHits: 1})
	agg.RecordSearch(SearchEvent{Query: "narm", Ranking: "bm25", TotalHits: 1})
	agg.RecordSearch(SearchEvent{Query: "gru", Ranking: "widget", TotalHits: 1})
	built := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agg.RecordBuild(BuildEvent{Generation: "g9", Documents: 12, Terms: 900, Timestamp: built})

	stats := agg.Stats()
	assert.Equal(t, map[string]int64{"widget": 2, "bm25": 1}, stats.SearchesByRanking)
	require.NotNil(t, stats.LastBuild)
	assert.Equal(t, "g9", stats.LastGeneration)
	assert.Equal(t, 12, stats.LastBuild.Documents)
	assert.Equal(t, built, stats.LastBuild.BuiltAt)

	restored := NewAggregator()
	restored.Restore(stats)
	again := restored.Stats()
	assert.Equal(t, stats.LastBuild, again.LastBuild)
	assert.Equal(t, stats.SearchesByRanking, again.SearchesByRanking)
}

func TestStatsTopClamps(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxTop+5; i++ {
		agg.RecordSearch(SearchEvent{Query: string(rune('a'+i%26)) + string(rune('a'+i/26)), TotalHits: 1})
	}
	assert.Len(t, agg.StatsTop(0).TopQueries, defaultTop)
	assert.Len(t, agg.StatsTop(3).TopQueries, 3)
	assert.Len(t, agg.StatsTop(1000).TopQueries, maxTop)
}
