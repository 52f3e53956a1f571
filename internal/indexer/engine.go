// Package indexer turns the content tree into index generations. The Engine
// builds, validates and writes an index, then swaps it in atomically so that
// readers only ever see a complete generation.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/tracing"
)

const publishTimeout = 10 * time.Second

// Generation is one immutable, fully validated index.
type Generation struct {
	ID       string
	Index    *index.SearchIndex
	Manifest *artifact.Manifest
	LoadedAt time.Time
}

// BuildRecorder stores build history; *catalog.Catalog implements it.
type BuildRecorder interface {
	Record(ctx context.Context, b catalog.Build) error
}

// EventTracker receives analytics events; analytics collectors implement it.
type EventTracker interface {
	Track(event any)
}

// Deps are the optional collaborators of an Engine. Nil fields are skipped.
type Deps struct {
	Recorder  BuildRecorder
	Publisher kafka.Publisher
	Tracker   EventTracker
	Metrics   *metrics.Metrics
}

type Engine struct {
	cfg       config.BuilderConfig
	indexPath string
	loader    *source.Loader
	writer    *artifact.Writer
	deps      Deps
	logger    *slog.Logger

	current atomic.Pointer[Generation]
	buildMu sync.Mutex
	trigger chan struct{}

	recordBreaker  *resilience.CircuitBreaker
	publishBreaker *resilience.CircuitBreaker

	fingerprintMu   sync.Mutex
	lastFingerprint uint64
}

// NewEngine creates an Engine that builds from cfg.SourceDir into
// cfg.OutputPath(). indexPath is the artifact Reload reads; it defaults to
// the output path.
func NewEngine(cfg config.BuilderConfig, indexPath string, deps Deps) *Engine {
	if indexPath == "" {
		indexPath = cfg.OutputPath()
	}
	e := &Engine{
		cfg:       cfg,
		indexPath: indexPath,
		loader:    source.NewLoader(cfg),
		writer:    artifact.NewWriter(cfg.OutputPath()),
		deps:      deps,
		logger:    slog.Default().With("component", "indexer"),
		trigger:   make(chan struct{}, 1),
	}
	onState := func(name string, s resilience.State) {
		if deps.Metrics != nil {
			deps.Metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
		}
	}
	e.recordBreaker = resilience.NewCircuitBreaker("catalog", resilience.CircuitBreakerConfig{OnStateChange: onState})
	e.publishBreaker = resilience.NewCircuitBreaker("kafka", resilience.CircuitBreakerConfig{OnStateChange: onState})
	return e
}

// Dependencies reports the circuit state of the catalog and Kafka calls.
func (e *Engine) Dependencies() map[string]string {
	return map[string]string{
		e.recordBreaker.Name():  e.recordBreaker.GetState().String(),
		e.publishBreaker.Name(): e.publishBreaker.GetState().String(),
	}
}

// Current returns the active index, or nil before the first build or load.
func (e *Engine) Current() *index.SearchIndex {
	if g := e.current.Load(); g != nil {
		return g.Index
	}
	return nil
}

// CurrentGeneration returns the active generation, or nil.
func (e *Engine) CurrentGeneration() *Generation {
	return e.current.Load()
}

// Build loads every source document, builds and validates a new index,
// writes it atomically and makes it current. Build history and the
// index.complete announcement are best effort: their failures are logged
// and never fail the build. Concurrent calls are serialised.
func (e *Engine) Build(ctx context.Context) (*Generation, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	id := uuid.NewString()
	log := e.logger.With("generation", id)

	fingerprint, fpErr := e.loader.Fingerprint()
	spanCtx, span := tracing.StartSpan(ctx, "index.build", id)
	gen, err := e.build(spanCtx, id)
	span.End()
	span.Log(e.logger)
	finished := time.Now()
	if e.deps.Metrics != nil {
		e.deps.Metrics.IndexBuildDuration.Observe(finished.Sub(start).Seconds())
	}

	rec := catalog.Build{
		ID:         id,
		StartedAt:  start,
		FinishedAt: finished,
		Path:       e.writer.Path(),
		Status:     catalog.StatusSuccess,
	}
	if err != nil {
		rec.Status = catalog.StatusFailed
		rec.Error = err.Error()
		e.countBuild("failed")
		e.record(ctx, rec)
		log.Error("index build failed", "error", err, "duration", finished.Sub(start))
		return nil, err
	}

	if fpErr == nil {
		e.fingerprintMu.Lock()
		e.lastFingerprint = fingerprint
		e.fingerprintMu.Unlock()
	}
	e.current.Store(gen)

	m := gen.Manifest
	rec.Documents, rec.Terms, rec.SizeBytes, rec.Checksum = m.Docs, m.Terms, m.Size, m.Checksum
	e.countBuild("success")
	e.observeIndex(gen)
	e.record(ctx, rec)
	e.publish(ctx, gen)
	if e.deps.Tracker != nil {
		e.deps.Tracker.Track(analytics.BuildEvent{
			Type:       analytics.EventIndexBuild,
			Generation: id,
			Documents:  m.Docs,
			Terms:      m.Terms,
			SizeBytes:  m.Size,
			LatencyMs:  finished.Sub(start).Milliseconds(),
			Timestamp:  finished.UTC(),
		})
	}

	log.Info("index built",
		"documents", m.Docs,
		"terms", m.Terms,
		"bytes", m.Size,
		"checksum", fmt.Sprintf("%08x", m.Checksum),
		"duration", finished.Sub(start),
	)
	return gen, nil
}

func (e *Engine) build(ctx context.Context, id string) (*Generation, error) {
	_, span := tracing.StartChildSpan(ctx, "load")
	docs, err := e.loader.Load(ctx)
	span.SetAttr("documents", len(docs))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEmptyCorpus, e.cfg.SourceDir)
	}

	_, span = tracing.StartChildSpan(ctx, "tokenize")
	b := builder.New(e.cfg.Weighted)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.Add(doc); err != nil {
			return nil, fmt.Errorf("adding %s: %w", doc.Filename, err)
		}
	}
	idx := b.Freeze()
	span.SetAttr("tokens", b.TokenCount())
	span.End()

	_, span = tracing.StartChildSpan(ctx, "validate")
	err = idx.Validate()
	span.End()
	if err != nil {
		return nil, fmt.Errorf("validating built index: %w", err)
	}

	_, span = tracing.StartChildSpan(ctx, "write")
	manifest, err := e.writer.Write(idx)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}
	span.SetAttr("bytes", manifest.Size)
	return &Generation{ID: id, Index: idx, Manifest: manifest, LoadedAt: time.Now()}, nil
}

// Reload reads and validates the artifact at the index path and makes it
// current. A failed reload keeps the previous generation.
func (e *Engine) Reload(ctx context.Context) (*index.SearchIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, manifest, err := artifact.Load(e.indexPath)
	if err != nil {
		e.countReload("failed")
		return nil, fmt.Errorf("reloading index: %w", err)
	}
	gen := &Generation{
		ID:       fmt.Sprintf("%08x", manifest.Checksum),
		Index:    idx,
		Manifest: manifest,
		LoadedAt: time.Now(),
	}
	e.current.Store(gen)
	e.countReload("success")
	e.observeIndex(gen)
	e.logger.Info("index loaded",
		"path", e.indexPath,
		"generation", gen.ID,
		"documents", manifest.Docs,
		"terms", manifest.Terms,
	)
	return idx, nil
}

// TriggerRebuild requests a rebuild from the loop started by
// StartRebuildLoop. Requests made while one is pending are coalesced.
func (e *Engine) TriggerRebuild() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// StartRebuildLoop rebuilds when triggered, and every RebuildInterval when
// the source fingerprint has changed since the last successful build.
func (e *Engine) StartRebuildLoop(ctx context.Context) {
	var tick <-chan time.Time
	if e.cfg.RebuildInterval > 0 {
		ticker := time.NewTicker(e.cfg.RebuildInterval)
		tick = ticker.C
		go func() {
			<-ctx.Done()
			ticker.Stop()
		}()
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("rebuild loop stopping")
				return
			case <-e.trigger:
				e.rebuild(ctx, "triggered")
			case <-tick:
				if e.sourcesChanged() {
					e.rebuild(ctx, "sources changed")
				}
			}
		}
	}()
	e.logger.Info("rebuild loop started", "interval", e.cfg.RebuildInterval)
}

func (e *Engine) rebuild(ctx context.Context, reason string) {
	e.logger.Info("rebuilding index", "reason", reason)
	if _, err := e.Build(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("rebuild failed, keeping previous generation", "error", err)
	}
}

func (e *Engine) sourcesChanged() bool {
	fp, err := e.loader.Fingerprint()
	if err != nil {
		e.logger.Error("fingerprinting sources failed", "error", err)
		return false
	}
	e.fingerprintMu.Lock()
	defer e.fingerprintMu.Unlock()
	return fp != e.lastFingerprint
}

func (e *Engine) record(ctx context.Context, b catalog.Build) {
	if e.deps.Recorder == nil {
		return
	}
	err := e.recordBreaker.Execute(func() error {
		return resilience.Retry(ctx, "record-build", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return e.deps.Recorder.Record(ctx, b)
		})
	})
	if err != nil {
		e.logger.Warn("build not recorded", "generation", b.ID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, gen *Generation) {
	if e.deps.Publisher == nil {
		return
	}
	m := gen.Manifest
	event := kafka.Event{
		Key: gen.ID,
		Value: IndexCompleteEvent{
			Generation: gen.ID,
			Path:       m.Path,
			Checksum:   m.Checksum,
			Documents:  m.Docs,
			Terms:      m.Terms,
			SizeBytes:  m.Size,
			BuiltAt:    m.BuiltAt,
		},
	}
	err := e.publishBreaker.Execute(func() error {
		return resilience.WithTimeout(ctx, publishTimeout, "publish-index-complete", func(ctx context.Context) error {
			return e.deps.Publisher.Publish(ctx, event)
		})
	})
	if err != nil {
		e.logger.Warn("index.complete not published", "generation", gen.ID, "error", err)
	}
}

func (e *Engine) countBuild(status string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) countReload(status string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) observeIndex(gen *Generation) {
	if e.deps.Metrics == nil {
		return
	}
	stats := gen.Index.Stats()
	e.deps.Metrics.IndexDocuments.Set(float64(stats.Documents))
	e.deps.Metrics.IndexTerms.WithLabelValues("terms").Set(float64(stats.Terms))
	e.deps.Metrics.IndexTerms.WithLabelValues("titleterms").Set(float64(stats.TitleTerms))
	e.deps.Metrics.IndexSizeBytes.Set(float64(gen.Manifest.Size))
}
