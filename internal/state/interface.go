// Package state provides SQLite-backed bookkeeping for dispatch runs.
package state

import "io"

// RunStore handles run-level persistence operations.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	GetLatestRun() (*Run, error)
	UpdateRunStatus(id, status string) error
	ListRuns() ([]Run, error)
}

// DelegationStore handles delegation snapshot persistence.
type DelegationStore interface {
	RecordDelegation(d *DelegationRecord) error
	ListDelegations(runID string) ([]DelegationRecord, error)
	CompletedDelegationIDs(runID string) ([]string, error)
}

// MetricStore handles per-run counter persistence.
type MetricStore interface {
	SetMetric(runID, name string, value int64) error
	ListMetrics(runID string) ([]Metric, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore is what the engine and the status command depend on,
// composed from focused sub-interfaces so callers can narrow as needed.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	DelegationStore
	MetricStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore      = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ RunStore        = (*DB)(nil)
	_ DelegationStore = (*DB)(nil)
	_ MetricStore     = (*DB)(nil)
)
