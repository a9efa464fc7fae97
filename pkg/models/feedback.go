package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// OutputStatus is the worker's self-reported outcome after normalization.
type OutputStatus string

const (
	// OutputStatusCompleted indicates the worker finished the task.
	OutputStatusCompleted OutputStatus = "completed"
	// OutputStatusBlocked indicates the worker cannot proceed without answers.
	OutputStatusBlocked OutputStatus = "blocked"
	// OutputStatusFailed indicates the worker reported a failure.
	OutputStatusFailed OutputStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s OutputStatus) Valid() bool {
	switch s {
	case OutputStatusCompleted, OutputStatusBlocked, OutputStatusFailed:
		return true
	default:
		return false
	}
}

// QuestionCategory classifies how urgently a question needs an answer.
type QuestionCategory string

const (
	// QuestionCritical blocks forward progress until answered.
	QuestionCritical QuestionCategory = "critical"
	// QuestionClarification is wanted but not blocking.
	QuestionClarification QuestionCategory = "clarification"
	// QuestionOptional is informational only.
	QuestionOptional QuestionCategory = "optional"
)

// Valid returns true if the category is a known value.
func (c QuestionCategory) Valid() bool {
	switch c {
	case QuestionCritical, QuestionClarification, QuestionOptional:
		return true
	default:
		return false
	}
}

// Question is a single question raised by a worker or the planner.
type Question struct {
	// ID is deterministic: the same source asking the same question
	// always produces the same identifier, which lets the engine skip
	// questions that were already answered.
	ID       string           `json:"id"`
	Source   string           `json:"source"`
	Text     string           `json:"text"`
	Category QuestionCategory `json:"category"`
	Context  string           `json:"context,omitempty"`
}

// NewQuestionID derives the deterministic question identifier from the
// source and the whitespace-normalized, lowercased question text.
func NewQuestionID(source, text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(source + " " + normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// NewQuestion builds a Question with its derived ID.
func NewQuestion(source, text string, category QuestionCategory) Question {
	return Question{
		ID:       NewQuestionID(source, text),
		Source:   source,
		Text:     text,
		Category: category,
	}
}

// Answer is a recorded response to a Question.
type Answer struct {
	QuestionID string    `json:"question_id"`
	Text       string    `json:"text"`
	AnsweredBy string    `json:"answered_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// WorkerOutput is the normalized result of one execution. An instance
// exists only when validation found no fatal errors.
type WorkerOutput struct {
	Status OutputStatus `json:"status"`
	// Summary is the compact result text.
	Summary string `json:"summary_md,omitempty"`
	// Detailed is the full report text.
	Detailed string `json:"detailed_md,omitempty"`
	// BlockingQuestions must be non-empty when Status is blocked and
	// empty when Status is completed.
	BlockingQuestions []Question `json:"blocking_questions,omitempty"`
	OptionalQuestions []Question `json:"optional_questions,omitempty"`
	MissingInfo       []string   `json:"missing_info,omitempty"`
	Assumptions       []string   `json:"assumptions,omitempty"`
	CriteriaMet       []string   `json:"criteria_met,omitempty"`
	CriteriaUnmet     []string   `json:"criteria_unmet,omitempty"`
	SideEffects       []string   `json:"side_effects,omitempty"`
	// Notes records non-fatal normalization repairs (coercions,
	// truncations, defaults).
	Notes []string `json:"notes,omitempty"`
}

// FeedbackStatus is the planner-facing classification of an outcome.
type FeedbackStatus string

const (
	// FeedbackCompleted indicates the delegation finished cleanly.
	FeedbackCompleted FeedbackStatus = "completed"
	// FeedbackNeedsClarification indicates non-blocking questions or
	// missing information were reported.
	FeedbackNeedsClarification FeedbackStatus = "needs_clarification"
	// FeedbackBlocked indicates the worker is stuck on blocking questions.
	FeedbackBlocked FeedbackStatus = "blocked"
	// FeedbackFailed indicates execution or validation failed.
	FeedbackFailed FeedbackStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackCompleted, FeedbackNeedsClarification, FeedbackBlocked, FeedbackFailed:
		return true
	default:
		return false
	}
}

// DelegationStatus maps the feedback classification onto the
// delegation lifecycle.
func (s FeedbackStatus) DelegationStatus() DelegationStatus {
	switch s {
	case FeedbackCompleted:
		return DelegationStatusCompleted
	case FeedbackNeedsClarification:
		return DelegationStatusNeedsClarification
	case FeedbackBlocked:
		return DelegationStatusBlocked
	default:
		return DelegationStatusFailed
	}
}

// AgentFeedback is the planner-facing synthesis of one delegation's
// outcome. Feedback is append-only history and never mutated.
type AgentFeedback struct {
	AgentID      string         `json:"agent_id"`
	DelegationID string         `json:"delegation_id"`
	Status       FeedbackStatus `json:"status"`
	// Raw is the unmodified worker response text.
	Raw string `json:"raw,omitempty"`
	// Output is present only when validation succeeded.
	Output    *WorkerOutput `json:"output,omitempty"`
	Questions []Question    `json:"questions,omitempty"`
	Blockers  []string      `json:"blockers,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
