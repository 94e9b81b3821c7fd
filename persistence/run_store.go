// Package persistence stores analysis run history.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded analysis.
type Run struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Strategy    string         `json:"strategy"`
	Outcome     string         `json:"outcome"`
	Steps       int            `json:"steps"`
	Delegations int            `json:"delegations"`
	Degraded    bool           `json:"degraded"`
	Duration    time.Duration  `json:"duration_ns"`
	Error       string         `json:"error,omitempty"`
	Draft       map[string]any `json:"draft"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RunStore persists runs in a SQLite database.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens or creates the database at dbPath. ":memory:" works for
// tests.
func NewRunStore(dbPath string) (*RunStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes writes.
	db.SetMaxOpenConns(1)
	store := &RunStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *RunStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		strategy TEXT NOT NULL,
		outcome TEXT NOT NULL,
		steps INTEGER,
		delegations INTEGER,
		degraded BOOLEAN,
		duration_ns INTEGER,
		error TEXT,
		draft TEXT,
		created_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun upserts a run. A zero CreatedAt is stamped with the current time.
func (s *RunStore) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	draft, err := json.Marshal(run.Draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO runs (
		id, description, strategy, outcome, steps, delegations, degraded,
		duration_ns, error, draft, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		description=excluded.description,
		strategy=excluded.strategy,
		outcome=excluded.outcome,
		steps=excluded.steps,
		delegations=excluded.delegations,
		degraded=excluded.degraded,
		duration_ns=excluded.duration_ns,
		error=excluded.error,
		draft=excluded.draft,
		created_at=excluded.created_at
	`,
		run.ID,
		run.Description,
		run.Strategy,
		run.Outcome,
		run.Steps,
		run.Delegations,
		run.Degraded,
		int64(run.Duration),
		run.Error,
		string(draft),
		run.CreatedAt.UTC(),
	)
	return err
}

const runColumns = `id, description, strategy, outcome, steps, delegations, degraded, duration_ns, error, draft, created_at`

// Get loads one run.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// Recent lists the newest runs first. A non-positive limit means 20.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Stats summarises the stored history.
type Stats struct {
	Total      int            `json:"total"`
	Degraded   int            `json:"degraded"`
	ByStrategy map[string]int `json:"by_strategy"`
}

// Stats counts runs overall, degraded, and per recovery strategy.
func (s *RunStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStrategy: map[string]int{}}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN degraded THEN 1 ELSE 0 END), 0) FROM runs`,
	).Scan(&stats.Total, &stats.Degraded); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT strategy, COUNT(*) FROM runs GROUP BY strategy`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var strategy string
		var count int
		if err := rows.Scan(&strategy, &count); err != nil {
			return nil, err
		}
		stats.ByStrategy[strategy] = count
	}
	return stats, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			run      Run
			duration int64
			errText  sql.NullString
			draft    sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.Description,
			&run.Strategy,
			&run.Outcome,
			&run.Steps,
			&run.Delegations,
			&run.Degraded,
			&duration,
			&errText,
			&draft,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(duration)
		run.Error = errText.String
		if draft.Valid && draft.String != "" {
			if err := json.Unmarshal([]byte(draft.String), &run.Draft); err != nil {
				return nil, fmt.Errorf("decode draft for %s: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
