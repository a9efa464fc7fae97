// Package delegation validates planner delegation requests and turns
// them into dependency-ordered execution waves.
package delegation

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/dispatch/internal/graph"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// BlockedInputsError aggregates all delegations in a batch that were
// blocked because their required inputs were not fully provided. The
// delegations are still registered with the manager; the caller decides
// whether to proceed with the rest of the batch.
type BlockedInputsError struct {
	// Missing maps delegation ID to the inputs it is missing.
	Missing map[string][]string
}

func (e *BlockedInputsError) Error() string {
	ids := make([]string, 0, len(e.Missing))
	for id := range e.Missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d delegation(s) blocked on missing inputs:", len(ids)))
	for _, id := range ids {
		b.WriteString(fmt.Sprintf(" %s (missing %s)", id, strings.Join(e.Missing[id], ", ")))
	}
	return b.String()
}

// Manager tracks delegations across planner iterations, validates new
// batches, and produces dependency-ordered waves.
type Manager struct {
	mu sync.Mutex
	// agents is the configured agent roster.
	agents map[string]bool
	// delegations is every delegation registered this run.
	delegations map[string]*models.Delegation
	// completed holds IDs completed in earlier iterations (or resumed
	// runs); dependencies on them are considered satisfied.
	completed map[string]bool
	// logf is an optional debug logging function.
	logf func(format string, args ...interface{})
	// now is injectable for tests.
	now func() time.Time
}

// NewManager creates a Manager for the given agent roster.
func NewManager(agentNames []string) *Manager {
	agents := make(map[string]bool, len(agentNames))
	for _, name := range agentNames {
		agents[name] = true
	}
	return &Manager{
		agents:      agents,
		delegations: make(map[string]*models.Delegation),
		completed:   make(map[string]bool),
		logf:        func(format string, args ...interface{}) {},
		now:         time.Now,
	}
}

// SetDebugLog sets the debug logging function.
func (m *Manager) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		m.logf = fn
	}
}

// SeedCompleted registers delegation IDs completed before this manager
// existed (a resumed run). Dependencies on them are satisfied.
func (m *Manager) SeedCompleted(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.completed[id] = true
	}
}

// CreateDelegations parses a batch of raw specs into validated
// Delegation records. The whole batch is rejected on a malformed spec,
// a duplicate ID, an unknown agent, or an unknown dependency. After
// construction, delegations whose required inputs are not fully
// provided are marked blocked and reported together as a
// *BlockedInputsError; the returned slice still contains them so the
// caller can decide whether to run the rest.
func (m *Manager) CreateDelegations(specs []models.DelegationSpec) ([]*models.Delegation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(specs) == 0 {
		return nil, fmt.Errorf("empty delegation batch")
	}

	// First pass: structural validation over the whole batch before
	// anything is registered.
	inBatch := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("spec %d: missing id", i)
		}
		if spec.Agent == "" {
			return nil, fmt.Errorf("spec %q: missing agent", spec.ID)
		}
		if strings.TrimSpace(spec.Task) == "" {
			return nil, fmt.Errorf("spec %q: missing task description", spec.ID)
		}
		if inBatch[spec.ID] {
			return nil, fmt.Errorf("duplicate delegation id %q in batch", spec.ID)
		}
		if _, exists := m.delegations[spec.ID]; exists {
			return nil, fmt.Errorf("delegation id %q already exists in this run", spec.ID)
		}
		if !m.agents[spec.Agent] {
			return nil, fmt.Errorf("spec %q: unknown agent %q", spec.ID, spec.Agent)
		}
		inBatch[spec.ID] = true
	}

	for _, spec := range specs {
		for _, depID := range spec.DependsOn {
			if inBatch[depID] || m.completed[depID] {
				continue
			}
			if _, exists := m.delegations[depID]; exists {
				continue
			}
			return nil, fmt.Errorf("spec %q: depends on unknown delegation %q", spec.ID, depID)
		}
	}

	// Second pass: construct and register. Missing-input gating happens
	// after construction so blocked delegations are recorded, never
	// silently dropped.
	blocked := make(map[string][]string)
	result := make([]*models.Delegation, 0, len(specs))
	for _, spec := range specs {
		d := &models.Delegation{
			ID:                 spec.ID,
			AgentID:            spec.Agent,
			Task:               spec.Task,
			AcceptanceCriteria: spec.AcceptanceCriteria,
			RequiredInputs:     spec.RequiredInputs,
			ProvidedInputs:     spec.ProvidedInputs,
			DependsOn:          spec.DependsOn,
			Context:            spec.Context,
			Priority:           spec.Priority,
			ParallelGroup:      spec.ParallelGroup,
			Status:             models.DelegationStatusPending,
			CreatedAt:          m.now(),
		}
		if missing := d.MissingInputs(); len(missing) > 0 {
			d.Status = models.DelegationStatusBlocked
			d.Error = fmt.Sprintf("missing required inputs: %s", strings.Join(missing, ", "))
			blocked[d.ID] = missing
			m.logf("[manager] delegation %s blocked: %s", d.ID, d.Error)
		}
		m.delegations[d.ID] = d
		result = append(result, d)
	}

	if len(blocked) > 0 {
		return result, &BlockedInputsError{Missing: blocked}
	}
	return result, nil
}

// ExecutionOrder builds a dependency graph over the non-blocked
// delegations and extracts dependency-satisfied waves in order. Within
// a wave, delegations are sorted by ascending priority with ID as the
// final tiebreak. A cycle or a permanently unsatisfiable dependency set
// is fatal for the whole batch.
func (m *Manager) ExecutionOrder(delegations []*models.Delegation) ([]models.Wave, error) {
	m.mu.Lock()
	completed := make(map[string]bool, len(m.completed))
	for id := range m.completed {
		completed[id] = true
	}
	known := make([]string, 0, len(m.delegations))
	for id := range m.delegations {
		if !completed[id] {
			known = append(known, id)
		}
	}
	m.mu.Unlock()

	var schedulable []*models.Delegation
	for _, d := range delegations {
		if d.Status == models.DelegationStatusBlocked {
			// Blocked delegations are permanently excluded from
			// scheduling within a batch.
			continue
		}
		schedulable = append(schedulable, d)
	}
	if len(schedulable) == 0 {
		return nil, nil
	}

	g := graph.New()
	g.SetDebugLog(m.logf)
	for id := range completed {
		g.SeedCompleted([]string{id})
	}
	g.SeedKnown(known)
	if err := g.Build(schedulable); err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}

	byID := make(map[string]*models.Delegation, len(schedulable))
	for _, d := range schedulable {
		byID[d.ID] = d
	}

	var waves []models.Wave
	scheduled := 0
	for scheduled < len(schedulable) {
		readyIDs := g.GetReady()
		if len(readyIDs) == 0 {
			// Build already rejects cycles, so this means remaining
			// delegations depend on something that will never complete.
			return nil, fmt.Errorf("unsatisfiable dependencies: %d delegation(s) can never run", len(schedulable)-scheduled)
		}

		wave := models.Wave{Index: len(waves)}
		for _, id := range readyIDs {
			wave.Delegations = append(wave.Delegations, byID[id])
		}
		sort.SliceStable(wave.Delegations, func(i, j int) bool {
			a, b := wave.Delegations[i], wave.Delegations[j]
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return a.ID < b.ID
		})

		for _, d := range wave.Delegations {
			g.MarkComplete(d.ID)
		}
		scheduled += len(wave.Delegations)
		waves = append(waves, wave)
		m.logf("[manager] wave %d: %v", wave.Index, wave.IDs())
	}

	return waves, nil
}

// UpdateStatus transitions a delegation to a new status, attaching the
// result payload or error text. Terminal delegations are immutable.
func (m *Manager) UpdateStatus(id string, status models.DelegationStatus, result, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.delegations[id]
	if !ok {
		return fmt.Errorf("unknown delegation %q", id)
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	if d.Status.Terminal() {
		return fmt.Errorf("delegation %q is already terminal (%s)", id, d.Status)
	}

	d.Status = status
	d.Result = result
	d.Error = errText
	if status.Terminal() {
		now := m.now()
		d.DoneAt = &now
	}
	if status == models.DelegationStatusCompleted {
		m.completed[id] = true
	}
	return nil
}

// Get returns the delegation with the given ID, or nil.
func (m *Manager) Get(id string) *models.Delegation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delegations[id]
}

// Pending returns delegations that have not started.
func (m *Manager) Pending() []*models.Delegation {
	return m.withStatus(models.DelegationStatusPending)
}

// Completed returns delegations that finished successfully.
func (m *Manager) Completed() []*models.Delegation {
	return m.withStatus(models.DelegationStatusCompleted)
}

// Failed returns delegations that failed.
func (m *Manager) Failed() []*models.Delegation {
	return m.withStatus(models.DelegationStatusFailed)
}

// Blocked returns delegations that are blocked.
func (m *Manager) Blocked() []*models.Delegation {
	return m.withStatus(models.DelegationStatusBlocked)
}

func (m *Manager) withStatus(status models.DelegationStatus) []*models.Delegation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Delegation
	for _, d := range m.delegations {
		if d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CompletedIDs returns every completed ID, including seeded ones.
func (m *Manager) CompletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.completed))
	for id := range m.completed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
