// Package history keeps a local log of retrieval attempts in SQLite, so
// operators can see what was pulled from the data server and when.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS retrieval_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	diag_name TEXT NOT NULL,
	shot INTEGER NOT NULL,
	subshot INTEGER NOT NULL,
	channel INTEGER NOT NULL,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	success BOOLEAN NOT NULL,
	samples INTEGER NOT NULL DEFAULT 0,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_shot ON retrieval_history(diag_name, shot);
CREATE INDEX IF NOT EXISTS idx_history_started ON retrieval_history(started_at);
`

// Attempt is one logged retrieval.
type Attempt struct {
	ID        int64
	RunID     string
	DiagName  string
	Shot      int
	Subshot   int
	Channel   int
	StartedAt time.Time
	Duration  time.Duration
	Success   bool
	Samples   int
	Error     string
}

// Store is the SQLite-backed retrieval log. Each process gets its own
// run ID so attempts from one batch invocation group together.
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode keeps concurrent batch workers from blocking each other.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db, runID: uuid.New().String()}, nil
}

// RunID returns this process's attempt-grouping identifier.
func (s *Store) RunID() string { return s.runID }

// Record appends one attempt to the log. A zero RunID is filled with the
// store's own.
func (s *Store) Record(ctx context.Context, a Attempt) error {
	runID := a.RunID
	if runID == "" {
		runID = s.runID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retrieval_history
			(run_id, diag_name, shot, subshot, channel, started_at, duration_ms, success, samples, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.DiagName, a.Shot, a.Subshot, a.Channel,
		a.StartedAt.UTC(), a.Duration.Milliseconds(), a.Success, a.Samples,
		sql.NullString{String: a.Error, Valid: a.Error != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to record retrieval attempt: %w", err)
	}
	return nil
}

// ListRecent returns the newest attempts, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, diag_name, shot, subshot, channel,
		       started_at, duration_ms, success, samples, error
		FROM retrieval_history
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query retrieval history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var durationMS int64
		var errMsg sql.NullString

		if err := rows.Scan(
			&a.ID, &a.RunID, &a.DiagName, &a.Shot, &a.Subshot, &a.Channel,
			&a.StartedAt, &durationMS, &a.Success, &a.Samples, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond
		a.Error = errMsg.String
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read retrieval history: %w", err)
	}
	return attempts, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
