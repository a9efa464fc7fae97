// Package planner turns run state into the next coordination decision:
// delegate more work, ask the user something, or declare the run done.
package planner

import (
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Kind classifies a planner decision.
type Kind string

const (
	// KindDelegate schedules a new batch of delegations.
	KindDelegate Kind = "delegate"
	// KindAskUser surfaces questions to the user before continuing.
	KindAskUser Kind = "ask_user"
	// KindDone declares the objective satisfied.
	KindDone Kind = "done"
)

// Valid returns true if the kind is a recognized decision kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDelegate, KindAskUser, KindDone:
		return true
	}
	return false
}

// Decision is one planner output.
type Decision struct {
	Kind        Kind
	Delegations []models.DelegationSpec
	Questions   []models.Question
	// NeedsUserInput mirrors the planner's own flag. The engine treats
	// ask_user without a critical question as a policy violation.
	NeedsUserInput bool
	Reason         string
}

// Context is everything the planner sees when deciding.
type Context struct {
	Objective string
	Iteration int
	// Facts is the live fact pool (superseded facts excluded).
	Facts []models.Fact
	// History is the accumulated worker feedback across waves.
	History []models.AgentFeedback
	// Answers are the user answers recorded so far.
	Answers []models.Answer
	// Roles lists the agent roles available for delegation.
	Roles []string
}
