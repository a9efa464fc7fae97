package state

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory StateStore for tests and embedding.
type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	delegations map[string]map[string]*DelegationRecord
	metrics     map[string]map[string]int64
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[string]*Run),
		delegations: make(map[string]map[string]*DelegationRecord),
		metrics:     make(map[string]map[string]int64),
	}
}

// Close implements io.Closer.
func (m *MemoryStore) Close() error { return nil }

// Migrate is a no-op for the in-memory store.
func (m *MemoryStore) Migrate() error { return nil }

// CreateRun stores a run.
func (m *MemoryStore) CreateRun(r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[r.ID]; exists {
		return fmt.Errorf("run already exists: %s", r.ID)
	}
	clone := *r
	m.runs[r.ID] = &clone
	return nil
}

// GetRun retrieves a run by ID.
func (m *MemoryStore) GetRun(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

// GetLatestRun retrieves the most recently started run.
func (m *MemoryStore) GetLatestRun() (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Run
	for _, r := range m.runs {
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// UpdateRunStatus sets a run's status.
func (m *MemoryStore) UpdateRunStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	r.Status = status
	if status != RunStatusRunning {
		now := time.Now()
		r.CompletedAt = &now
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (m *MemoryStore) ListRuns() ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// RecordDelegation upserts a delegation snapshot.
func (m *MemoryStore) RecordDelegation(d *DelegationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.delegations[d.RunID]
	if !ok {
		byID = make(map[string]*DelegationRecord)
		m.delegations[d.RunID] = byID
	}
	clone := *d
	byID[d.ID] = &clone
	return nil
}

// ListDelegations returns a run's delegation snapshots in wave order.
func (m *MemoryStore) ListDelegations(runID string) ([]DelegationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []DelegationRecord
	for _, d := range m.delegations[runID] {
		records = append(records, *d)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Wave != records[j].Wave {
			return records[i].Wave < records[j].Wave
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// CompletedDelegationIDs returns ids of completed delegations.
func (m *MemoryStore) CompletedDelegationIDs(runID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, d := range m.delegations[runID] {
		if d.Status == "completed" {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SetMetric upserts a counter value.
func (m *MemoryStore) SetMetric(runID, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName, ok := m.metrics[runID]
	if !ok {
		byName = make(map[string]int64)
		m.metrics[runID] = byName
	}
	byName[name] = value
	return nil
}

// ListMetrics returns a run's metrics sorted by name.
func (m *MemoryStore) ListMetrics(runID string) ([]Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var metrics []Metric
	for name, value := range m.metrics[runID] {
		metrics = append(metrics, Metric{RunID: runID, Name: name, Value: value})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Name < metrics[j].Name })
	return metrics, nil
}
