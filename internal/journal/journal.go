// File: internal/journal/journal.go
// Brief: Local SQLite journal of deployment runs, steps, and events.

// Package journal persists what each deployment run did. It is local
// observability only: orchestration never consults it, since every run
// re-applies idempotently against the platform's own records.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const journalRelPath = ".fsdeploy/state.sqlite"

// Store wraps the journal database.
type Store struct {
	db   *sql.DB
	path string
}

// RunEntry is one row of `fsdeploy runs`.
type RunEntry struct {
	RunID     string
	App       string
	Command   string
	Status    string
	StartedAt string
	UpdatedAt string
	Succeeded int
	Failed    int
	Skipped   int
	Planned   int
}

// StepRecord is one step's journaled state within a run.
type StepRecord struct {
	StepID   string
	Status   string
	Error    string
	Started  time.Time
	Finished time.Time
}

// Open creates or opens the journal under root.
func Open(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absRoot, journalRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the journal file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS fsdeploy_runs (
  run_id TEXT PRIMARY KEY,
  app TEXT NOT NULL,
  region TEXT NOT NULL,
  command TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at_ns INTEGER NOT NULL,
  updated_at_ns INTEGER NOT NULL,
  summary_json TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS fsdeploy_steps (
  run_id TEXT NOT NULL,
  step_id TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT NOT NULL,
  started_at_ns INTEGER NOT NULL,
  finished_at_ns INTEGER NOT NULL,
  PRIMARY KEY (run_id, step_id),
  FOREIGN KEY (run_id) REFERENCES fsdeploy_runs(run_id) ON DELETE CASCADE
);`,
		`
CREATE TABLE IF NOT EXISTS fsdeploy_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  ts_ns INTEGER NOT NULL,
  step_id TEXT NOT NULL,
  type TEXT NOT NULL,
  message TEXT NOT NULL,
  FOREIGN KEY (run_id) REFERENCES fsdeploy_runs(run_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_fsdeploy_events_run_id_id ON fsdeploy_events(run_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateRun inserts the run row and one planned row per step.
func (s *Store) CreateRun(ctx context.Context, runID, app, region, command string, stepIDs []string) error {
	now := time.Now().UTC().UnixNano()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `
INSERT INTO fsdeploy_runs (run_id, app, region, command, status, created_at_ns, updated_at_ns, summary_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, runID, app, region, command, "running", now, now, "{}")
	if err != nil {
		return err
	}
	for _, id := range stepIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO fsdeploy_steps (run_id, step_id, status, error, started_at_ns, finished_at_ns)
VALUES (?, ?, 'planned', '', 0, 0)
`, runID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetStepStatus updates one step row and appends the matching event.
func (s *Store) SetStepStatus(ctx context.Context, runID, stepID, status, errMsg string, started, finished time.Time) error {
	now := time.Now().UTC().UnixNano()
	_, err := s.db.ExecContext(ctx, `
UPDATE fsdeploy_steps SET status = ?, error = ?, started_at_ns = ?, finished_at_ns = ?
WHERE run_id = ? AND step_id = ?
`, status, errMsg, nanoOrZero(started), nanoOrZero(finished), runID, stepID)
	if err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE fsdeploy_runs SET updated_at_ns = ? WHERE run_id = ?`, now, runID)
	return s.AppendEvent(ctx, runID, stepID, "STEP_"+strings.ToUpper(status), errMsg)
}

// AppendEvent records one free-form run event.
func (s *Store) AppendEvent(ctx context.Context, runID, stepID, eventType, message string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fsdeploy_events (run_id, ts_ns, step_id, type, message)
VALUES (?, ?, ?, ?, ?)
`, runID, time.Now().UTC().UnixNano(), stepID, eventType, message)
	return err
}

// FinishRun stores the terminal status and the summary document.
func (s *Store) FinishRun(ctx context.Context, runID, status string, summary any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE fsdeploy_runs SET status = ?, summary_json = ?, updated_at_ns = ? WHERE run_id = ?
`, status, string(raw), time.Now().UTC().UnixNano(), runID)
	return err
}

// ListRuns returns the most recent runs with per-status step totals.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.run_id, r.app, r.command, r.status, r.created_at_ns, r.updated_at_ns,
  SUM(CASE WHEN st.status = 'succeeded' THEN 1 ELSE 0 END),
  SUM(CASE WHEN st.status = 'failed' THEN 1 ELSE 0 END),
  SUM(CASE WHEN st.status = 'skipped' THEN 1 ELSE 0 END),
  COUNT(st.step_id)
FROM fsdeploy_runs r
LEFT JOIN fsdeploy_steps st ON st.run_id = r.run_id
GROUP BY r.run_id
ORDER BY r.created_at_ns DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		var created, updated int64
		if err := rows.Scan(&e.RunID, &e.App, &e.Command, &e.Status, &created, &updated,
			&e.Succeeded, &e.Failed, &e.Skipped, &e.Planned); err != nil {
			return nil, err
		}
		e.StartedAt = time.Unix(0, created).UTC().Format(time.RFC3339)
		e.UpdatedAt = time.Unix(0, updated).UTC().Format(time.RFC3339)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RunSteps returns the journaled step rows for one run in insertion order.
func (s *Store) RunSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT step_id, status, error, started_at_ns, finished_at_ns
FROM fsdeploy_steps WHERE run_id = ? ORDER BY rowid
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var started, finished int64
		if err := rows.Scan(&rec.StepID, &rec.Status, &rec.Error, &started, &finished); err != nil {
			return nil, err
		}
		if started > 0 {
			rec.Started = time.Unix(0, started).UTC()
		}
		if finished > 0 {
			rec.Finished = time.Unix(0, finished).UTC()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
