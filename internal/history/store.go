// Package history persists one row per dictation run in a local SQLite
// database. Writes are best-effort from the pipeline's point of view: a
// failed insert is logged, never surfaced to the run.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed dictation run.
type Run struct {
	ID            int64
	StartedAt     time.Time
	AudioDuration time.Duration
	RawText       string
	FinalText     string
	// Outcome is one of: inserted, rejected, empty, too_short, error.
	Outcome string
	// FallbackReason is set when formatting fell back to the raw
	// transcript (empty otherwise).
	FallbackReason string
}

// Store writes and reads run history.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at      REAL NOT NULL,
	audio_ms        INTEGER NOT NULL,
	raw_text        TEXT NOT NULL,
	final_text      TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	fallback_reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);
`

// Open opens (or creates) the database at path with WAL enabled and applies
// the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps SQLite happy under WAL.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one run row and returns its ID.
func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, audio_ms, raw_text, final_text, outcome, fallback_reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, unixFloat(r.StartedAt), r.AudioDuration.Milliseconds(),
		r.RawText, r.FinalText, r.Outcome, r.FallbackReason)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, audio_ms, raw_text, final_text, outcome, fallback_reason
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt float64
		var audioMs int64
		if err := rows.Scan(&r.ID, &startedAt, &audioMs,
			&r.RawText, &r.FinalText, &r.Outcome, &r.FallbackReason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = timeFromUnix(startedAt)
		r.AudioDuration = time.Duration(audioMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
