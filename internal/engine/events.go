// Package engine runs the coordination loop: planner decisions in,
// delegated waves out, everything persisted between iterations.
package engine

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventIterationStarted indicates a new planning iteration began.
	EventIterationStarted EventType = "iteration_started"
	// EventDecision indicates the planner returned a decision.
	EventDecision EventType = "decision"
	// EventWaveStarted indicates a wave of delegations began executing.
	EventWaveStarted EventType = "wave_started"
	// EventWaveCompleted indicates a wave finished.
	EventWaveCompleted EventType = "wave_completed"
	// EventDelegationDone indicates one delegation reached a terminal status.
	EventDelegationDone EventType = "delegation_done"
	// EventQuestionsAsked indicates the run blocked on user questions.
	EventQuestionsAsked EventType = "questions_asked"
	// EventPolicyViolation indicates an ask_user decision carried no
	// critical question; the run proceeded without blocking.
	EventPolicyViolation EventType = "policy_violation"
	// EventRunDone indicates the run reached a terminal state.
	EventRunDone EventType = "run_done"
)

// EngineEvent is emitted on the engine's event channel so a UI or log
// subscriber can track progress.
type EngineEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run.
	RunID string
	// Wave is the wave index, where applicable.
	Wave int
	// DelegationID identifies the related delegation, if any.
	DelegationID string
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
