package feedback

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Loop wraps validation and keeps an append-only history of feedback
// for summaries and conflict detection.
type Loop struct {
	mu        sync.Mutex
	validator *Validator
	history   []*models.AgentFeedback
	now       func() time.Time
}

// NewLoop creates a feedback loop around the given validator.
func NewLoop(v *Validator) *Loop {
	if v == nil {
		v = NewValidator()
	}
	return &Loop{validator: v, now: time.Now}
}

// ProcessAgentResult validates a raw worker response, classifies it,
// and appends the resulting feedback to the history. It always returns
// feedback; unvalidatable input is classified as failed.
func (l *Loop) ProcessAgentResult(agentID, delegationID, raw string) *models.AgentFeedback {
	fb := &models.AgentFeedback{
		AgentID:      agentID,
		DelegationID: delegationID,
		Raw:          raw,
		CreatedAt:    l.now(),
	}

	payload, err := extractObject(raw)
	if err != nil {
		fb.Status = models.FeedbackFailed
		fb.Error = err.Error()
		l.append(fb)
		return fb
	}

	out, fatal := l.validator.Validate(agentID, payload)
	if out == nil {
		fb.Status = models.FeedbackFailed
		fb.Error = "worker output rejected: " + strings.Join(fatal, "; ")
		l.append(fb)
		return fb
	}

	fb.Output = out
	fb.Questions = append(append([]models.Question{}, out.BlockingQuestions...), out.OptionalQuestions...)
	for _, q := range out.BlockingQuestions {
		fb.Blockers = append(fb.Blockers, q.Text)
	}

	switch out.Status {
	case models.OutputStatusFailed:
		fb.Status = models.FeedbackFailed
		fb.Error = out.Detailed
	case models.OutputStatusBlocked:
		fb.Status = models.FeedbackBlocked
	default:
		if len(out.OptionalQuestions) > 0 || len(out.MissingInfo) > 0 {
			fb.Status = models.FeedbackNeedsClarification
		} else {
			fb.Status = models.FeedbackCompleted
		}
	}

	l.append(fb)
	return fb
}

// ProcessExecutionFailure records a failure that happened before any
// worker output existed (timeout, transport error, panic).
func (l *Loop) ProcessExecutionFailure(agentID, delegationID, errText string) *models.AgentFeedback {
	fb := &models.AgentFeedback{
		AgentID:      agentID,
		DelegationID: delegationID,
		Status:       models.FeedbackFailed,
		Error:        errText,
		CreatedAt:    l.now(),
	}
	l.append(fb)
	return fb
}

func (l *Loop) append(fb *models.AgentFeedback) {
	l.mu.Lock()
	l.history = append(l.history, fb)
	l.mu.Unlock()
}

// History returns a copy of the feedback history in arrival order.
func (l *Loop) History() []*models.AgentFeedback {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.AgentFeedback, len(l.history))
	copy(out, l.history)
	return out
}

// Summary returns per-status counts over the history.
func (l *Loop) Summary() map[models.FeedbackStatus]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[models.FeedbackStatus]int)
	for _, fb := range l.history {
		counts[fb.Status]++
	}
	return counts
}

// CriterionConflict reports two delegations disagreeing about the same
// acceptance criterion.
type CriterionConflict struct {
	Criterion string
	MetBy     []string
	UnmetBy   []string
}

// ConflictingCriteria scans the history for acceptance criteria that one
// delegation claims to have met and another claims is unmet.
func (l *Loop) ConflictingCriteria() []CriterionConflict {
	l.mu.Lock()
	defer l.mu.Unlock()

	metBy := make(map[string][]string)
	unmetBy := make(map[string][]string)
	for _, fb := range l.history {
		if fb.Output == nil {
			continue
		}
		for _, c := range fb.Output.CriteriaMet {
			metBy[c] = append(metBy[c], fb.DelegationID)
		}
		for _, c := range fb.Output.CriteriaUnmet {
			unmetBy[c] = append(unmetBy[c], fb.DelegationID)
		}
	}

	var conflicts []CriterionConflict
	for criterion, met := range metBy {
		if unmet, ok := unmetBy[criterion]; ok {
			conflicts = append(conflicts, CriterionConflict{
				Criterion: criterion,
				MetBy:     met,
				UnmetBy:   unmet,
			})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Criterion < conflicts[j].Criterion })
	return conflicts
}

// extractObject finds and decodes the first JSON object in free-form
// worker text. Workers wrap their JSON in prose often enough that the
// salvage is worth it.
func extractObject(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in worker response")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse worker response: %w", err)
	}
	return payload, nil
}
