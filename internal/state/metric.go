package state

import "fmt"

// SetMetric upserts a named counter value for a run.
func (db *DB) SetMetric(runID, name string, value int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO metrics (run_id, name, value)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET value = excluded.value
	`, runID, name, value)
	if err != nil {
		return fmt.Errorf("set metric: %w", err)
	}
	return nil
}

// ListMetrics returns a run's metrics sorted by name.
func (db *DB) ListMetrics(runID string) ([]Metric, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT run_id, name, value FROM metrics WHERE run_id = ? ORDER BY name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.RunID, &m.Name, &m.Value); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
