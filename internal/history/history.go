// Package history keeps an audit log of workflow runs in a local SQLite
// database. The log is advisory: deployment state is always derived from the
// runtime, never from this store, and a failure to record is a warning, not
// an error.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openclaw/openclaw-deploy/internal/constants"
)

const driverName = "sqlite"

// Run is one recorded workflow invocation.
type Run struct {
	RunID      string
	Workflow   string
	Outcome    string
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Store struct {
	db *sql.DB
}

func Open(dir string) (*Store, error) {
	dbFile := filepath.Join(dir, constants.HistoryDBFileName)
	database, err := sql.Open(driverName, dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := database.Exec("PRAGMA journal_mode = WAL"); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			workflow    TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(run Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, workflow, outcome, detail, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Workflow, run.Outcome, run.Detail,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, workflow, outcome, detail, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.RunID, &run.Workflow, &run.Outcome, &run.Detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
