// Command searcher serves queries against the current index generation.
//
// It loads the artifact written by the indexer, answers GET /api/v1/search
// with widget-compatible ranking, caches results in Redis when available, and
// reloads whenever an index.complete event arrives on Kafka.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
)

const (
	analyticsBatchSize     = 100
	analyticsFlushInterval = 2 * time.Second
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index", cfg.Search.IndexPath, "ranking", cfg.Search.Ranking)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine := indexer.NewEngine(cfg.Builder, cfg.Search.IndexPath, indexer.Deps{Metrics: m})
	if _, err := engine.Reload(ctx); err != nil {
		// Serve anyway; searches answer 503 until a generation arrives.
		slog.Warn("no index loaded at startup", "error", err)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Search events go to Kafka for the analytics service when it is
	// configured, otherwise straight into a local aggregator.
	aggregator := analytics.NewAggregator()
	var sink collector.BatchSink = aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		sink = producer
	}
	events := collector.NewBatchCollector(sink, analyticsBatchSize, analyticsFlushInterval)
	events.Start(ctx)
	defer events.Close()

	var indexConsumer *consumer.IndexConsumer
	if cfg.Kafka.Enabled {
		hostname, _ := os.Hostname()
		// Every replica must see every generation, so each gets its own group.
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, hostname)
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group,
			consumer.HandleIndexComplete(engine, cacheInvalidator(queryCache)))
		indexConsumer = consumer.New(kc)
		defer indexConsumer.Close()
		go func() {
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("index consumer error", "error", err)
			}
		}()
		slog.Info("listening for new generations", "topic", cfg.Kafka.Topics.IndexComplete, "group", group)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		gen := engine.CurrentGeneration()
		if gen == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %s, %d documents", gen.ID, gen.Index.NumDocs()),
		}
	})
	if indexConsumer != nil {
		checker.Register("kafka", indexConsumer.Check)
	}
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
	}

	exec := executor.New(engine, cfg.Search)
	h := handler.New(exec, engine, queryCache, events, m)
	analyticsH := analytics.NewHandler(aggregator, nil)

	mux := http.NewServeMux()
	h.Register(mux)
	analyticsH.Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		limiter.StartCleanup(ctx)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "per_minute", cfg.Server.RateLimit)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// cacheInvalidator avoids handing a typed nil *QueryCache to an interface.
func cacheInvalidator(c *cache.QueryCache) consumer.Invalidator {
	if c == nil {
		return nil
	}
	return c
}
