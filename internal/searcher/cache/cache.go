package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
)

const keyPrefix = "docindex:search:"

// defaultComputeTimeout bounds a shared search computation.
const defaultComputeTimeout = 10 * time.Second

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache stores search results in Redis keyed by a hash of the parsed
// query and page size.
type QueryCache struct {
	backend        Store
	ttl            time.Duration
	computeTimeout time.Duration
	group          singleflight.Group
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

func New(backend Store, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		backend:        backend,
		ttl:            cfg.CacheTTL,
		computeTimeout: defaultComputeTimeout,
		logger:         slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for plan and limit, if any.
func (c *QueryCache) Get(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, bool) {
	return c.lookup(ctx, c.buildKey(plan, limit))
}

// Set caches result for plan and limit. Failures are logged; a search never
// fails because the cache is unavailable.
func (c *QueryCache) Set(ctx context.Context, plan *parser.QueryPlan, limit int, result *executor.SearchResult) {
	c.store(ctx, c.buildKey(plan, limit), result)
}

// GetOrCompute returns a cached result or computes, stores and returns a new
// one. Concurrent misses for the same key share a single computation, which
// runs on a context detached from any one caller so a client going away does
// not fail the others; each caller still stops waiting when its own ctx is
// done. The boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	limit int,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := c.buildKey(plan, limit)
	if result, ok := c.lookup(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		// another caller may have stored it while we waited for the group
		if result, ok := c.lookup(sctx, key); ok {
			return result, nil
		}
		result, err := computeFn(sctx)
		if err != nil {
			return nil, err
		}
		c.store(sctx, key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared computation", "query", plan.RawQuery)
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	result := new(executor.SearchResult)
	if err := sonic.UnmarshalString(data, result); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return result, true
}

func (c *QueryCache) store(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := sonic.Marshal(result)
	if err != nil {
		c.logger.Error("encoding cache entry failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached result. It is called whenever a new index
// generation is loaded.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(plan *parser.QueryPlan, limit int) string {
	sum := sha256.Sum256([]byte(normalizeQuery(plan) + "|limit=" + strconv.Itoa(limit)))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// normalizeQuery renders the parts of a plan that affect its result. Term
// order does not matter; the raw text does, because it drives title search.
func normalizeQuery(plan *parser.QueryPlan) string {
	terms := append([]string(nil), plan.Terms...)
	excludes := append([]string(nil), plan.ExcludeTerms...)
	sort.Strings(terms)
	sort.Strings(excludes)
	parts := []string{
		strings.ToLower(strings.TrimSpace(plan.RawQuery)),
		strings.Join(terms, ","),
	}
	if len(excludes) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	return strings.Join(parts, "|")
}
