package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
)

type loadOptions struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	indexPath   string
	queries     []string
}

// loadStats is shared by every worker.
type loadStats struct {
	requests  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{statuses: make(map[int]int64)}
}

func (s *loadStats) record(latency time.Duration, status int, cacheHit bool, err error) {
	s.requests.Add(1)
	if err != nil {
		s.failures.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.successes.Add(1)
	} else {
		s.failures.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.statuses[status]++
	s.mu.Unlock()
}

func newLoadTestCommand(opts *globalOptions) *cobra.Command {
	lo := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Replay queries against a running searcher and report latency",
		Long: `Replay queries against a running searcher and report latency.

Queries come from --query flags, or from the titles of the index given with
--index when no --query is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(lo.queries) == 0 {
				if lo.indexPath == "" {
					return fmt.Errorf("either --query or --index is required")
				}
				idx, _, err := artifact.Load(lo.indexPath)
				if err != nil {
					return err
				}
				lo.queries = queriesFromTitles(idx.Titles)
				if len(lo.queries) == 0 {
					return fmt.Errorf("index %s has no titles to query", lo.indexPath)
				}
			}
			w := cmd.OutOrStdout()
			heading.Fprintln(w, "docindex load test")
			field(w, "target", lo.baseURL)
			field(w, "workers", lo.concurrency)
			field(w, "duration", lo.duration)
			field(w, "queries", len(lo.queries))

			stats := runLoad(cmd.Context(), lo)
			printLoadReport(w, stats, lo.duration)
			if stats.requests.Load() == 0 {
				return fmt.Errorf("no requests completed; is the searcher running at %s?", lo.baseURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lo.baseURL, "url", "http://localhost:8080", "base URL of the searcher")
	cmd.Flags().IntVar(&lo.concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&lo.duration, "duration", 30*time.Second, "how long to run")
	cmd.Flags().IntVar(&lo.limit, "limit", 10, "limit parameter sent with each query")
	cmd.Flags().StringVarP(&lo.indexPath, "index", "i", "", "take queries from this index's titles")
	cmd.Flags().StringArrayVarP(&lo.queries, "query", "q", nil, "query to send (repeatable)")
	return cmd
}

// queriesFromTitles lower-cases titles and drops duplicates.
func queriesFromTitles(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	var out []string
	for _, t := range titles {
		q := strings.ToLower(strings.TrimSpace(t))
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func runLoad(parent context.Context, lo *loadOptions) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        lo.concurrency * 2,
			MaxIdleConnsPerHost: lo.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(parent, lo.duration)
	defer cancel()

	var wg sync.WaitGroup
	for worker := 0; worker < lo.concurrency; worker++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := lo.queries[next%len(lo.queries)]
				next++
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					strings.TrimRight(lo.baseURL, "/"), url.QueryEscape(query), lo.limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.record(0, 0, false, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				latency := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.record(latency, 0, false, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(latency, resp.StatusCode, resp.Header.Get(middleware.CacheHeader) == "HIT", nil)
			}
		}(worker)
	}
	wg.Wait()
	return stats
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.requests.Load()
	heading.Fprintln(w, "results")
	field(w, "requests", total)
	field(w, "succeeded", stats.successes.Load())
	field(w, "failed", stats.failures.Load())
	if total > 0 {
		field(w, "error rate", fmt.Sprintf("%.2f%%", float64(stats.failures.Load())/float64(total)*100))
		field(w, "cache hits", fmt.Sprintf("%.2f%%", float64(stats.cacheHits.Load())/float64(total)*100))
		field(w, "req/s", fmt.Sprintf("%.2f", float64(total)/duration.Seconds()))
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statuses))
	for code := range stats.statuses {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(stats.statuses))
	for code, n := range stats.statuses {
		counts[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		heading.Fprintln(w, "latency")
		field(w, "min", latencies[0])
		field(w, "p50", percentile(latencies, 50))
		field(w, "p90", percentile(latencies, 90))
		field(w, "p99", percentile(latencies, 99))
		field(w, "max", latencies[len(latencies)-1])
	}

	sort.Ints(codes)
	if len(codes) > 0 {
		heading.Fprintln(w, "status codes")
		for _, code := range codes {
			field(w, fmt.Sprint(code), counts[code])
		}
	}
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}
