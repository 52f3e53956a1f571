// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search and build events from Kafka, aggregates them in memory
// (query volume, latency percentiles, cache hit rate, top and zero-result
// queries, build history), periodically snapshots the aggregate to
// PostgreSQL, and exposes GET /api/v1/analytics and
// GET /api/v1/analytics/snapshots for dashboards. On start it restores the
// counters from the latest snapshot.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
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
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	var snapshots analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := aggregator.NewStore(db, cfg.Analytics.SnapshotRetention)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("failed to create snapshot schema", "error", err)
				os.Exit(1)
			}
			latest, err := store.LatestSnapshot(ctx)
			switch {
			case err != nil:
				slog.Warn("could not restore analytics", "error", err)
			case latest != nil:
				agg.Restore(latest.Stats)
				slog.Info("analytics restored", "snapshot", latest.ID, "captured_at", latest.CapturedAt)
			}
			store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			snapshots = store
			checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDegraded))
		}
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, cfg.Kafka.ConsumerGroup+"-analytics", analytics.HandleEvent(agg))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		checker.Register("kafka", consumer.Check)
		slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.SearchEvents)
	} else {
		slog.Warn("kafka disabled, no events will arrive")
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
