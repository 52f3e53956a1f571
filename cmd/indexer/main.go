// Command indexer builds searchindex.js from the content tree and keeps it
// current. It builds once at startup, then rebuilds when the sources change
// or a content.changed event arrives, announcing each new generation on the
// index.complete topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "build a single generation and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"source", cfg.Builder.SourceDir,
		"output", cfg.Builder.OutputPath(),
		"weighted", cfg.Builder.Weighted,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	deps := indexer.Deps{Metrics: m}
	checker := health.NewChecker()

	var builds *catalog.Catalog
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, build history disabled", "error", err)
		} else {
			defer db.Close()
			builds = catalog.New(db)
			if err := builds.EnsureSchema(ctx); err != nil {
				slog.Error("failed to create catalog schema", "error", err)
				os.Exit(1)
			}
			deps.Recorder = builds
			checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDegraded))
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		deps.Publisher = producer

		eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer eventsProducer.Close()
		events := analytics.NewCollector(eventsProducer, 1000)
		events.Start(ctx)
		defer events.Close()
		deps.Tracker = events
	}

	engine := indexer.NewEngine(cfg.Builder, "", deps)
	if _, err := engine.Build(ctx); err != nil {
		if *once || errors.Is(err, context.Canceled) {
			slog.Error("initial build failed", "error", err)
			os.Exit(1)
		}
		slog.Error("initial build failed, waiting for content", "error", err)
	}
	if *once {
		return
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine.StartRebuildLoop(ctx)

	if cfg.Kafka.Enabled {
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ContentChanged, "", consumer.HandleContentChanged(engine))
		indexConsumer := consumer.New(kc)
		defer indexConsumer.Close()
		go func() {
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("content consumer error", "error", err)
			}
		}()
		checker.Register("kafka", indexConsumer.Check)
		slog.Info("consuming content events",
			"topic", cfg.Kafka.Topics.ContentChanged,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}

	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		gen := engine.CurrentGeneration()
		if gen == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no generation built"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "generation " + gen.ID}
	})

	mux := http.NewServeMux()
	var lister indexer.BuildLister
	if builds != nil {
		lister = builds
	}
	indexer.NewHandler(engine, lister).Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
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

	slog.Info("indexer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer service stopped")
}
