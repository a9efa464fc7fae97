package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/internal/api"
)

// APIPlanner asks the Anthropic API for the next decision.
type APIPlanner struct {
	runner *api.Runner
}

var _ Planner = (*APIPlanner)(nil)

// NewAPIPlanner creates a planner over an existing API client.
func NewAPIPlanner(client *api.Client) *APIPlanner {
	return &APIPlanner{runner: api.NewRunner(client)}
}

// NextDecision assembles the run state into a prompt, calls the model,
// and parses the strict JSON decision.
func (p *APIPlanner) NextDecision(ctx context.Context, pc *Context) (*Decision, error) {
	prompt := buildDecisionPrompt(pc)

	raw, err := p.runner.RunJSON(ctx, plannerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("planner call: %w", err)
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		return nil, fmt.Errorf("planner response: %w", err)
	}
	return decision, nil
}

// buildDecisionPrompt renders the run state sections that precede the
// JSON contract. Empty sections are omitted entirely.
func buildDecisionPrompt(pc *Context) string {
	var sb strings.Builder

	if len(pc.Roles) > 0 {
		sb.WriteString("Available roles: ")
		sb.WriteString(strings.Join(pc.Roles, ", "))
		sb.WriteString("\n\n")
	}

	if len(pc.Facts) > 0 {
		sb.WriteString("Known facts:\n")
		for _, f := range pc.Facts {
			marker := ""
			if f.Assumption {
				marker = " (assumption)"
			}
			fmt.Fprintf(&sb, "- [%s]%s %s\n", f.Origin, marker, f.Content)
		}
		sb.WriteString("\n")
	}

	if len(pc.History) > 0 {
		sb.WriteString("Worker feedback so far:\n")
		for _, fb := range pc.History {
			summary := fb.Error
			if fb.Output != nil && fb.Output.Summary != "" {
				summary = fb.Output.Summary
			}
			fmt.Fprintf(&sb, "- %s (%s): %s\n", fb.DelegationID, fb.Status, summary)
		}
		sb.WriteString("\n")
	}

	if len(pc.Answers) > 0 {
		sb.WriteString("Answered questions:\n")
		for _, a := range pc.Answers {
			fmt.Fprintf(&sb, "- Q[%s]: %s\n", a.QuestionID, a.Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "This is planning iteration %d.\n\n", pc.Iteration)

	return fmt.Sprintf(decisionPromptTemplate, pc.Objective, sb.String())
}
