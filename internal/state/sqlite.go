package state

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates an unopened store.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("state: open %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("state: ping %q: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("state: apply schema: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

// StartRun records a new run in running state.
func (s *SQLiteStore) StartRun(rootConfig string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:         uuid.New().String(),
		RootConfig: rootConfig,
		Status:     RunRunning,
		DryRun:     dryRun,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, root_config, status, dry_run, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.RootConfig, string(run.Status), boolToInt(run.DryRun), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("state: start run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run finished with the given status.
func (s *SQLiteStore) FinishRun(id string, status RunStatus, msg string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("state: finish run %s: %w", id, err)
	}
	return nil
}

// RecordStep records one catalog build within a run.
func (s *SQLiteStore) RecordStep(runID string, step Step) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO run_steps (id, run_id, config_key, artifact, status, error) VALUES (?, ?, ?, ?, ?, ?)`,
		step.ID, runID, step.ConfigKey, step.Artifact, string(step.Status), step.Error,
	)
	if err != nil {
		return fmt.Errorf("state: record step: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, root_config, status, error, dry_run, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("state: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var dryRun int
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.RootConfig, &status, &r.Error, &dryRun, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("state: scan run: %w", err)
		}
		r.Status = RunStatus(status)
		r.DryRun = dryRun != 0
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListSteps returns the steps of a run in insertion order.
func (s *SQLiteStore) ListSteps(runID string) ([]Step, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, config_key, artifact, status, error FROM run_steps WHERE run_id = ? ORDER BY rowid`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("state: list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []Step
	for rows.Next() {
		var st Step
		var status string
		if err := rows.Scan(&st.ID, &st.RunID, &st.ConfigKey, &st.Artifact, &status, &st.Error); err != nil {
			return nil, fmt.Errorf("state: scan step: %w", err)
		}
		st.Status = RunStatus(status)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
