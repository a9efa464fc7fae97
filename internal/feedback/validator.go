// Package feedback normalizes untrusted worker payloads into validated
// outputs and synthesizes planner-facing feedback.
package feedback

import (
	"fmt"
	"strconv"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Default text ceilings, in characters.
const (
	DefaultCompactLimit  = 24_000
	DefaultDetailedLimit = 80_000
)

// Validator converts arbitrary structured payloads into WorkerOutputs.
// Repairable problems become non-fatal notes on the output; internal
// inconsistencies in the worker's self-report are fatal and yield no
// output at all.
type Validator struct {
	// CompactLimit caps summary-class text fields.
	CompactLimit int
	// DetailedLimit caps report-class text fields.
	DetailedLimit int
}

// NewValidator creates a Validator with default ceilings.
func NewValidator() *Validator {
	return &Validator{
		CompactLimit:  DefaultCompactLimit,
		DetailedLimit: DefaultDetailedLimit,
	}
}

// Validate normalizes a payload from the given source (agent role).
// On success it returns the output and nil; on fatal errors it returns
// nil and the error list. Non-fatal repairs are recorded in
// output.Notes.
func (v *Validator) Validate(source string, payload map[string]any) (*models.WorkerOutput, []string) {
	if payload == nil {
		return nil, []string{"payload is not a JSON object"}
	}

	out := &models.WorkerOutput{}
	var fatal []string

	summary, note := v.coerceText(payload, "summary_md", "summary")
	if note != "" {
		out.Notes = append(out.Notes, note)
	}
	out.Summary, note = v.truncate("summary", summary, v.CompactLimit)
	if note != "" {
		out.Notes = append(out.Notes, note)
	}

	detailed, note := v.coerceText(payload, "detailed_md", "detailed", "report")
	if note != "" {
		out.Notes = append(out.Notes, note)
	}
	out.Detailed, note = v.truncate("detailed", detailed, v.DetailedLimit)
	if note != "" {
		out.Notes = append(out.Notes, note)
	}

	errText, note := v.coerceText(payload, "error")
	if note != "" {
		out.Notes = append(out.Notes, note)
	}

	blocking, notes := v.normalizeQuestions(payload["blocking_questions"], source, models.QuestionCritical)
	out.BlockingQuestions = blocking
	out.Notes = append(out.Notes, notes...)

	optional, notes := v.normalizeQuestions(firstPresent(payload, "optional_questions", "questions"), source, models.QuestionClarification)
	out.OptionalQuestions = optional
	out.Notes = append(out.Notes, notes...)

	out.MissingInfo, notes = v.stringList(payload, "missing_info")
	out.Notes = append(out.Notes, notes...)
	out.Assumptions, notes = v.stringList(payload, "assumptions")
	out.Notes = append(out.Notes, notes...)
	out.CriteriaMet, notes = v.stringList(payload, "criteria_met")
	out.Notes = append(out.Notes, notes...)
	out.CriteriaUnmet, notes = v.stringList(payload, "criteria_unmet")
	out.Notes = append(out.Notes, notes...)
	out.SideEffects, notes = v.stringList(payload, "side_effects")
	out.Notes = append(out.Notes, notes...)

	// Status: explicit recognized value wins; otherwise inferred from
	// the error field, then blocking questions, else completed.
	switch raw := payload["status"].(type) {
	case nil:
		out.Status = v.inferStatus(errText, blocking)
		out.Notes = append(out.Notes, fmt.Sprintf("status missing, inferred %q", out.Status))
	case string:
		status := models.OutputStatus(raw)
		if !status.Valid() {
			fatal = append(fatal, fmt.Sprintf("unknown status %q", raw))
		} else {
			out.Status = status
		}
	default:
		fatal = append(fatal, fmt.Sprintf("status has invalid type %T", raw))
	}

	// Self-report consistency. Violations mean the worker's own report
	// cannot be trusted, so they are fatal rather than repaired.
	if out.Status == models.OutputStatusBlocked && len(out.BlockingQuestions) == 0 {
		fatal = append(fatal, "status is blocked but no blocking questions were provided")
	}
	if out.Status == models.OutputStatusCompleted && len(out.BlockingQuestions) > 0 {
		fatal = append(fatal, fmt.Sprintf("status is completed but %d blocking question(s) remain", len(out.BlockingQuestions)))
	}

	if out.Status == models.OutputStatusFailed && errText == "" && out.Detailed == "" {
		out.Notes = append(out.Notes, "failed status carries no error or detail text")
	}
	if errText != "" && out.Detailed == "" {
		out.Detailed = errText
	}

	if len(fatal) > 0 {
		return nil, fatal
	}
	return out, nil
}

func (v *Validator) inferStatus(errText string, blocking []models.Question) models.OutputStatus {
	switch {
	case errText != "":
		return models.OutputStatusFailed
	case len(blocking) > 0:
		return models.OutputStatusBlocked
	default:
		return models.OutputStatusCompleted
	}
}

// coerceText fetches the first present key and coerces it to a string,
// noting the repair when the value had the wrong type.
func (v *Validator) coerceText(payload map[string]any, keys ...string) (string, string) {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		switch val := raw.(type) {
		case string:
			return val, ""
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), fmt.Sprintf("field %q coerced from number to string", key)
		case bool:
			return strconv.FormatBool(val), fmt.Sprintf("field %q coerced from bool to string", key)
		default:
			return fmt.Sprintf("%v", val), fmt.Sprintf("field %q coerced from %T to string", key, raw)
		}
	}
	return "", ""
}

func (v *Validator) truncate(name, text string, limit int) (string, string) {
	if limit <= 0 || len(text) <= limit {
		return text, ""
	}
	return text[:limit], fmt.Sprintf("field %q truncated from %d to %d characters", name, len(text), limit)
}

// normalizeQuestions accepts a list of strings or objects and produces
// Questions with deterministic IDs so the same question asked twice maps
// to the same identifier.
func (v *Validator) normalizeQuestions(raw any, source string, category models.QuestionCategory) ([]models.Question, []string) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, []string{fmt.Sprintf("question list has invalid type %T, dropped", raw)}
	}

	var questions []models.Question
	var notes []string
	for i, item := range list {
		switch q := item.(type) {
		case string:
			if q == "" {
				notes = append(notes, fmt.Sprintf("question %d is empty, dropped", i))
				continue
			}
			questions = append(questions, models.NewQuestion(source, q, category))
		case map[string]any:
			text, _ := q["text"].(string)
			if text == "" {
				text, _ = q["question"].(string)
			}
			if text == "" {
				notes = append(notes, fmt.Sprintf("question %d has no text, dropped", i))
				continue
			}
			question := models.NewQuestion(source, text, category)
			if ctx, ok := q["context"].(string); ok {
				question.Context = ctx
			}
			if cat, ok := q["category"].(string); ok {
				parsed := models.QuestionCategory(cat)
				if parsed.Valid() {
					question.Category = parsed
				} else {
					notes = append(notes, fmt.Sprintf("question %d has unknown category %q, kept %q", i, cat, category))
				}
			}
			questions = append(questions, question)
		default:
			notes = append(notes, fmt.Sprintf("question %d has invalid type %T, dropped", i, item))
		}
	}
	return questions, notes
}

func (v *Validator) stringList(payload map[string]any, key string) ([]string, []string) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, []string{fmt.Sprintf("field %q is not a list, dropped", key)}
	}

	var out []string
	var notes []string
	for i, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprintf("%v", item))
		notes = append(notes, fmt.Sprintf("%s[%d] coerced from %T to string", key, i, item))
	}
	return out, notes
}

func firstPresent(payload map[string]any, keys ...string) any {
	for _, key := range keys {
		if val, ok := payload[key]; ok {
			return val
		}
	}
	return nil
}
