// Package aggregator persists search analytics snapshots in PostgreSQL so
// query trends survive restarts of the analytics service.
package aggregator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

// DefaultRetention is how many snapshots are kept when none is configured.
const DefaultRetention = 1440

const schema = `CREATE TABLE IF NOT EXISTS search_analytics_snapshots (
	id              BIGSERIAL PRIMARY KEY,
	captured_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_generation TEXT NOT NULL DEFAULT '',
	total_searches  BIGINT NOT NULL,
	zero_results    BIGINT NOT NULL,
	p95_latency_ms  BIGINT NOT NULL,
	data            JSONB NOT NULL
)`

// Store keeps the latest Retention snapshots. The headline numbers get their
// own columns so they can be charted without unpacking data.
type Store struct {
	db        *postgres.Client
	retention int
	logger    *slog.Logger
}

func NewStore(db *postgres.Client, retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		db:        db,
		retention: retention,
		logger:    slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating search_analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot inserts stats and prunes snapshots beyond the retention in the
// same transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := sonic.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	var pruned int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_analytics_snapshots
			   (captured_at, last_generation, total_searches, zero_results, p95_latency_ms, data)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			time.Now().UTC(), stats.LastGeneration, stats.TotalSearches, stats.ZeroResultCount,
			stats.P95LatencyMs, data,
		); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM search_analytics_snapshots
			 WHERE id NOT IN (SELECT id FROM search_analytics_snapshots ORDER BY id DESC LIMIT $1)`,
			s.retention,
		)
		if err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", stats.TotalSearches, "pruned", pruned)
	return nil
}

// LatestSnapshot returns nil, nil when nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.Snapshot, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, captured_at, data FROM search_analytics_snapshots ORDER BY id DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows whose data
// no longer decodes are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, captured_at, data FROM search_analytics_snapshots ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []analytics.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (analytics.Snapshot, error) {
	var (
		snap analytics.Snapshot
		data []byte
	)
	if err := row.Scan(&snap.ID, &snap.CapturedAt, &data); err != nil {
		return snap, err
	}
	if err := sonic.Unmarshal(data, &snap.Stats); err != nil {
		return snap, fmt.Errorf("decoding snapshot %d: %w", snap.ID, err)
	}
	return snap, nil
}

// StartPeriodicSave snapshots agg every interval and once more when ctx is
// done. Ticks with no new events since the last save are skipped.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var saved int64 = -1
		save := func(ctx context.Context) {
			stats := agg.Stats()
			seen := stats.TotalSearches + stats.TotalBuilds
			if seen == saved {
				return
			}
			if err := s.SaveSnapshot(ctx, stats); err != nil {
				s.logger.Error("snapshot failed", "error", err)
				return
			}
			saved = seen
		}
		for {
			select {
			case <-ticker.C:
				save(ctx)
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				save(shutdownCtx)
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshots started", "interval", interval, "retention", s.retention)
}
