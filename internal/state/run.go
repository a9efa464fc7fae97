package state

import (
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCeiled    = "iteration_ceiling"
)

// Run is one coordination run's bookkeeping row.
type Run struct {
	ID          string
	Objective   string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// DelegationRecord is the terminal snapshot of one delegation.
type DelegationRecord struct {
	RunID     string
	ID        string
	Agent     string
	Task      string
	Status    string
	Wave      int
	Error     string
	CreatedAt time.Time
	DoneAt    *time.Time
}

// Metric is one named counter for a run.
type Metric struct {
	RunID string
	Name  string
	Value int64
}

// CreateRun inserts a new run row.
func (db *DB) CreateRun(r *Run) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO runs (id, objective, status, started_at)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.Objective, r.Status, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil when not found.
func (db *DB) GetRun(id string) (*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, objective, status, started_at, completed_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// GetLatestRun retrieves the most recently started run. Returns nil
// when the table is empty.
func (db *DB) GetLatestRun() (*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, objective, status, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT 1
	`)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&r.ID, &r.Objective, &r.Status, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	r.CompletedAt = parseNullableTime(completedAt)
	return &r, nil
}

// UpdateRunStatus sets the run's status, stamping completed_at for
// terminal statuses.
func (db *DB) UpdateRunStatus(id, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var completedAt any
	if status != RunStatusRunning {
		completedAt = formatTime(time.Now())
	}
	result, err := db.conn.Exec(`
		UPDATE runs SET status = ?, completed_at = ? WHERE id = ?
	`, status, completedAt, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, objective, status, started_at, completed_at
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Objective, &r.Status, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = parseTime(startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		r.CompletedAt = parseNullableTime(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
