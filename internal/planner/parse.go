package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// rawDecision is the JSON structure the planner model returns.
type rawDecision struct {
	Kind           string                  `json:"kind"`
	Delegations    []models.DelegationSpec `json:"delegations"`
	Questions      []rawQuestion           `json:"questions"`
	NeedsUserInput bool                    `json:"needs_user_input"`
	Reason         string                  `json:"reason"`
}

type rawQuestion struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Context  string `json:"context"`
}

// ParseDecision parses and validates a planner response. Validation is
// strict at this boundary: an unknown kind, a delegate decision with no
// delegations, or an ask_user decision with an empty question all fail
// loudly instead of being silently coerced.
func ParseDecision(raw string) (*Decision, error) {
	var rd rawDecision
	if err := json.Unmarshal([]byte(raw), &rd); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}

	kind := Kind(strings.ToLower(strings.TrimSpace(rd.Kind)))
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown decision kind %q", rd.Kind)
	}

	d := &Decision{
		Kind:           kind,
		NeedsUserInput: rd.NeedsUserInput,
		Reason:         strings.TrimSpace(rd.Reason),
	}

	switch kind {
	case KindDelegate:
		if len(rd.Delegations) == 0 {
			return nil, fmt.Errorf("delegate decision carries no delegations")
		}
		d.Delegations = rd.Delegations
	case KindAskUser:
		if len(rd.Questions) == 0 {
			return nil, fmt.Errorf("ask_user decision carries no questions")
		}
		d.NeedsUserInput = true
	case KindDone:
		if len(rd.Delegations) > 0 {
			return nil, fmt.Errorf("done decision still carries %d delegations", len(rd.Delegations))
		}
	}

	for _, q := range rd.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return nil, fmt.Errorf("decision question with empty text")
		}
		category := models.QuestionCategory(strings.ToLower(strings.TrimSpace(q.Category)))
		if !category.Valid() {
			category = models.QuestionClarification
		}
		question := models.NewQuestion("planner", text, category)
		question.Context = q.Context
		d.Questions = append(d.Questions, question)
	}

	return d, nil
}
