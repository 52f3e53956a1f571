// Package redis wraps go-redis/v9 for the searcher's query cache. Cached
// results are short-lived strings; a new index generation drops them all.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

// scanBatch is both the SCAN COUNT hint and the number of keys unlinked per
// round trip during invalidation.
const scanBatch = 256

type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis. The initial PING is retried a few times so a
// searcher started alongside its cache does not fail on a cold container.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: 4, InitialDelay: 250 * time.Millisecond}, func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern removes every key matching the glob pattern and reports how
// many were removed. Keys are unlinked in batches so a large cache does not
// cost one round trip per entry.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, batch...).Result()
		removed += n
		batch = batch[:0]
		return err
	}

	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("unlinking %s: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("unlinking %s: %w", pattern, err)
	}
	return removed, nil
}

// IsNilError reports whether err means the key was absent.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
