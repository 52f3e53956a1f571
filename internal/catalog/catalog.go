// Package catalog keeps the history of index builds in PostgreSQL: when each
// generation was built, from how many documents, and which artifact it
// produced.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Build is one row of index_builds.
type Build struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   uint32    `json:"checksum"`
	Path       string    `json:"path"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

const schema = `CREATE TABLE IF NOT EXISTS index_builds (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	doc_count   INTEGER NOT NULL,
	term_count  INTEGER NOT NULL,
	size_bytes  BIGINT NOT NULL,
	checksum    BIGINT NOT NULL,
	path        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
)`

const columns = `id, started_at, finished_at, doc_count, term_count, size_bytes, checksum, path, status, error`

type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "build-catalog"),
	}
}

// EnsureSchema creates index_builds if it does not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating index_builds: %w", err)
	}
	return nil
}

// Record inserts a build, or updates it when the id is already present.
func (c *Catalog) Record(ctx context.Context, b Build) error {
	_, err := c.db.DB.ExecContext(ctx,
		`INSERT INTO index_builds (`+columns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   finished_at = EXCLUDED.finished_at,
		   doc_count   = EXCLUDED.doc_count,
		   term_count  = EXCLUDED.term_count,
		   size_bytes  = EXCLUDED.size_bytes,
		   checksum    = EXCLUDED.checksum,
		   path        = EXCLUDED.path,
		   status      = EXCLUDED.status,
		   error       = EXCLUDED.error`,
		b.ID, b.StartedAt.UTC(), b.FinishedAt.UTC(), b.Documents, b.Terms,
		b.SizeBytes, int64(b.Checksum), b.Path, string(b.Status), b.Error,
	)
	if postgres.IsConstraintViolation(err) {
		return resilience.Permanent(fmt.Errorf("recording build %s: %w", b.ID, err))
	}
	if err != nil {
		return fmt.Errorf("recording build %s: %w", b.ID, err)
	}
	c.logger.Debug("build recorded", "id", b.ID, "status", b.Status)
	return nil
}

// Latest returns the most recent successful build, or nil when there is none.
func (c *Catalog) Latest(ctx context.Context) (*Build, error) {
	row := c.db.DB.QueryRowContext(ctx,
		`SELECT `+columns+` FROM index_builds
		 WHERE status = $1 ORDER BY finished_at DESC LIMIT 1`,
		string(StatusSuccess),
	)
	b, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest build: %w", err)
	}
	return &b, nil
}

// List returns the last limit builds, newest first.
func (c *Catalog) List(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM index_builds ORDER BY finished_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	builds := make([]Build, 0, limit)
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Build, error) {
	var (
		b        Build
		checksum int64
		status   string
	)
	err := s.Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.Documents, &b.Terms,
		&b.SizeBytes, &checksum, &b.Path, &status, &b.Error)
	if err != nil {
		return Build{}, err
	}
	b.Checksum = uint32(checksum)
	b.Status = Status(status)
	return b, nil
}
