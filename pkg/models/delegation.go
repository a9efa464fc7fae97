package models

import "time"

// DelegationStatus represents the current state of a delegation.
type DelegationStatus string

const (
	// DelegationStatusPending indicates the delegation has not started.
	DelegationStatusPending DelegationStatus = "pending"
	// DelegationStatusRunning indicates the delegation is being executed.
	DelegationStatusRunning DelegationStatus = "running"
	// DelegationStatusCompleted indicates the delegation finished successfully.
	DelegationStatusCompleted DelegationStatus = "completed"
	// DelegationStatusFailed indicates the delegation failed.
	DelegationStatusFailed DelegationStatus = "failed"
	// DelegationStatusBlocked indicates the delegation cannot proceed.
	DelegationStatusBlocked DelegationStatus = "blocked"
	// DelegationStatusNeedsClarification indicates the worker asked for more information.
	DelegationStatusNeedsClarification DelegationStatus = "needs_clarification"
)

// Valid returns true if the status is a known value.
func (s DelegationStatus) Valid() bool {
	switch s {
	case DelegationStatusPending, DelegationStatusRunning, DelegationStatusCompleted,
		DelegationStatusFailed, DelegationStatusBlocked, DelegationStatusNeedsClarification:
		return true
	default:
		return false
	}
}

// Terminal returns true once the delegation can no longer change state.
func (s DelegationStatus) Terminal() bool {
	switch s {
	case DelegationStatusCompleted, DelegationStatusFailed,
		DelegationStatusBlocked, DelegationStatusNeedsClarification:
		return true
	default:
		return false
	}
}

// DelegationSpec is the raw, planner-provided description of a unit of work.
// It is validated by the delegation manager before becoming a Delegation.
type DelegationSpec struct {
	// ID is the stable identifier, unique within a run.
	ID string `json:"id"`
	// Agent is the target agent role name.
	Agent string `json:"agent"`
	// Task is the human-readable task description.
	Task string `json:"task"`
	// AcceptanceCriteria lists the criteria for completion, in order.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// RequiredInputs lists input identifiers the delegation needs.
	RequiredInputs []string `json:"required_inputs,omitempty"`
	// ProvidedInputs lists input identifiers supplied with the delegation.
	ProvidedInputs []string `json:"provided_inputs,omitempty"`
	// DependsOn lists delegation IDs that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`
	// Context carries opaque key/value context for the worker.
	Context map[string]any `json:"context,omitempty"`
	// Priority breaks ties within a wave; lower runs first.
	Priority int `json:"priority,omitempty"`
	// ParallelGroup is an optional grouping tag.
	ParallelGroup string `json:"parallel_group,omitempty"`
}

// Delegation is one validated unit of planner-assigned work.
type Delegation struct {
	ID                 string           `json:"id"`
	AgentID            string           `json:"agent_id"`
	Task               string           `json:"task"`
	AcceptanceCriteria []string         `json:"acceptance_criteria,omitempty"`
	RequiredInputs     []string         `json:"required_inputs,omitempty"`
	ProvidedInputs     []string         `json:"provided_inputs,omitempty"`
	DependsOn          []string         `json:"depends_on,omitempty"`
	Context            map[string]any   `json:"context,omitempty"`
	Priority           int              `json:"priority,omitempty"`
	ParallelGroup      string           `json:"parallel_group,omitempty"`
	Status             DelegationStatus `json:"status"`
	// Result holds the terminal result payload for completed delegations.
	Result string `json:"result,omitempty"`
	// Error holds the error text for failed or blocked delegations.
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// MissingInputs returns required inputs that are not provided.
func (d *Delegation) MissingInputs() []string {
	provided := make(map[string]bool, len(d.ProvidedInputs))
	for _, in := range d.ProvidedInputs {
		provided[in] = true
	}
	var missing []string
	for _, in := range d.RequiredInputs {
		if !provided[in] {
			missing = append(missing, in)
		}
	}
	return missing
}

// Wave is an ordered batch of delegations whose dependencies are all
// satisfied at construction time. Waves are immutable once built.
type Wave struct {
	// Index is the zero-based wave number within the run.
	Index int `json:"index"`
	// Delegations are sorted by ascending priority.
	Delegations []*Delegation `json:"delegations"`
}

// IDs returns the delegation IDs in wave order.
func (w Wave) IDs() []string {
	ids := make([]string, len(w.Delegations))
	for i, d := range w.Delegations {
		ids[i] = d.ID
	}
	return ids
}
