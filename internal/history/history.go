// Package history keeps a log of generation runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one generation attempt.
type Run struct {
	ID          string
	Crate       string
	Version     string
	Destination string
	Outcome     string
	Reason      string
	Fingerprint string
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
	Files       int
}

// Store persists runs. Use ":memory:" for an in-memory database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the run log at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		crate TEXT NOT NULL,
		version TEXT NOT NULL,
		destination TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		fingerprint TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		files INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_crate ON runs(crate);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends run to the log.
func (s *Store) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, crate, version, destination, outcome, reason, fingerprint, error, started_at, duration_ms, files)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Crate, run.Version, run.Destination, run.Outcome, run.Reason,
		run.Fingerprint, run.Error, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.Files,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. An empty crate matches all.
func (s *Store) Recent(ctx context.Context, crate string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, crate, version, destination, outcome, reason, fingerprint, error, started_at, duration_ms, files
		 FROM runs WHERE (? = '' OR crate = ?) ORDER BY seq DESC LIMIT ?`,
		crate, crate, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                     Run
			reason, fp, errText   sql.NullString
			startedMS, durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.Crate, &r.Version, &r.Destination, &r.Outcome,
			&reason, &fp, &errText, &startedMS, &durationMS, &r.Files); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Reason = reason.String
		r.Fingerprint = fp.String
		r.Error = errText.String
		r.StartedAt = time.UnixMilli(startedMS)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
