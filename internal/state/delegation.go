package state

import (
	"database/sql"
	"fmt"
)

// RecordDelegation upserts a delegation snapshot. The engine records
// each delegation when it reaches a terminal status; re-recording the
// same delegation overwrites the previous snapshot, which keeps the
// operation idempotent under crash replay.
func (db *DB) RecordDelegation(d *DelegationRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var doneAt any
	if d.DoneAt != nil {
		doneAt = formatTime(*d.DoneAt)
	}
	_, err := db.conn.Exec(`
		INSERT INTO delegations (run_id, id, agent, task, status, wave, error, created_at, done_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET
			status = excluded.status,
			wave = excluded.wave,
			error = excluded.error,
			done_at = excluded.done_at
	`, d.RunID, d.ID, d.Agent, d.Task, d.Status, d.Wave, d.Error, formatTime(d.CreatedAt), doneAt)
	if err != nil {
		return fmt.Errorf("record delegation: %w", err)
	}
	return nil
}

// ListDelegations returns a run's delegation snapshots in wave order.
func (db *DB) ListDelegations(runID string) ([]DelegationRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT run_id, id, agent, task, status, wave, COALESCE(error, ''), created_at, done_at
		FROM delegations WHERE run_id = ? ORDER BY wave, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	defer rows.Close()

	var records []DelegationRecord
	for rows.Next() {
		var d DelegationRecord
		var createdAt string
		var doneAt sql.NullString
		if err := rows.Scan(&d.RunID, &d.ID, &d.Agent, &d.Task, &d.Status, &d.Wave, &d.Error, &createdAt, &doneAt); err != nil {
			return nil, fmt.Errorf("scan delegation: %w", err)
		}
		d.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		d.DoneAt = parseNullableTime(doneAt)
		records = append(records, d)
	}
	return records, rows.Err()
}

// CompletedDelegationIDs returns the ids of a run's completed
// delegations, used to seed dependency resolution on resume.
func (db *DB) CompletedDelegationIDs(runID string) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id FROM delegations WHERE run_id = ? AND status = 'completed' ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("completed delegation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
