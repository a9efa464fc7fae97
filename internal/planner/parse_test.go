package planner

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestParseDelegateDecision(t *testing.T) {
	raw := `{
		"kind": "delegate",
		"reason": "research before writing",
		"delegations": [
			{"id": "d1", "agent": "researcher", "task": "survey auth options"},
			{"id": "d2", "agent": "writer", "task": "draft the doc", "depends_on": ["d1"], "priority": 2}
		]
	}`
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Kind != KindDelegate {
		t.Errorf("expected delegate, got %s", d.Kind)
	}
	if len(d.Delegations) != 2 || d.Delegations[1].Priority != 2 {
		t.Errorf("delegations not carried through: %+v", d.Delegations)
	}
}

// A response that copies the prompt's delegation example verbatim must
// parse: the contract the template shows and the shape the parser
// accepts have to stay in lockstep.
func TestParseDecisionMatchingPromptExample(t *testing.T) {
	raw := `{
		"kind": "delegate",
		"reason": "One sentence explaining the decision",
		"delegations": [
			{
				"id": "short-unique-id",
				"agent": "researcher",
				"task": "What this delegation must accomplish",
				"acceptance_criteria": ["observable criterion"],
				"required_inputs": ["name of an input this unit needs"],
				"provided_inputs": ["name of an input already satisfied"],
				"depends_on": [],
				"priority": 0
			}
		],
		"questions": [],
		"needs_user_input": false
	}`
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("template-shaped decision must parse: %v", err)
	}
	if len(d.Delegations) != 1 {
		t.Fatalf("expected 1 delegation, got %d", len(d.Delegations))
	}
	spec := d.Delegations[0]
	if len(spec.RequiredInputs) != 1 || len(spec.ProvidedInputs) != 1 {
		t.Errorf("input lists not carried through: %+v", spec)
	}

	if !strings.Contains(decisionPromptTemplate, `"provided_inputs": [`) {
		t.Error("template must show provided_inputs as a string list")
	}
	if !strings.Contains(decisionPromptTemplate, "Lower priority values run earlier") {
		t.Error("template must describe ascending priority order")
	}
}

func TestParseDelegateWithoutDelegationsFails(t *testing.T) {
	if _, err := ParseDecision(`{"kind":"delegate"}`); err == nil {
		t.Error("delegate with no delegations must be rejected")
	}
}

func TestParseUnknownKindFails(t *testing.T) {
	_, err := ParseDecision(`{"kind":"escalate"}`)
	if err == nil || !strings.Contains(err.Error(), "unknown decision kind") {
		t.Errorf("expected unknown-kind error, got %v", err)
	}
}

func TestParseKindCaseInsensitive(t *testing.T) {
	d, err := ParseDecision(`{"kind":" Done "}`)
	if err != nil || d.Kind != KindDone {
		t.Errorf("expected done, got %v %v", d, err)
	}
}

func TestParseDoneWithDelegationsFails(t *testing.T) {
	raw := `{"kind":"done","delegations":[{"id":"d1","agent":"a","task":"t"}]}`
	if _, err := ParseDecision(raw); err == nil {
		t.Error("done decision carrying delegations must be rejected")
	}
}

func TestParseAskUserQuestions(t *testing.T) {
	raw := `{
		"kind": "ask_user",
		"questions": [
			{"text": "Which cloud provider?", "category": "critical", "context": "affects everything downstream"},
			{"text": "Preferred doc format?", "category": "nonsense"}
		]
	}`
	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !d.NeedsUserInput {
		t.Error("ask_user must force NeedsUserInput")
	}
	if len(d.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(d.Questions))
	}
	if d.Questions[0].Category != models.QuestionCritical {
		t.Errorf("critical category lost: %s", d.Questions[0].Category)
	}
	if d.Questions[1].Category != models.QuestionClarification {
		t.Errorf("invalid category should default to clarification, got %s", d.Questions[1].Category)
	}
	if d.Questions[0].ID == "" || d.Questions[0].Source != "planner" {
		t.Errorf("questions must get deterministic planner IDs: %+v", d.Questions[0])
	}
}

func TestParseAskUserWithoutQuestionsFails(t *testing.T) {
	if _, err := ParseDecision(`{"kind":"ask_user"}`); err == nil {
		t.Error("ask_user with no questions must be rejected")
	}
}

func TestParseEmptyQuestionTextFails(t *testing.T) {
	raw := `{"kind":"ask_user","questions":[{"text":"  "}]}`
	if _, err := ParseDecision(raw); err == nil {
		t.Error("blank question text must be rejected")
	}
}

func TestBuildDecisionPromptSections(t *testing.T) {
	pc := &Context{
		Objective: "write the migration guide",
		Iteration: 3,
		Roles:     []string{"researcher", "writer"},
		Facts: []models.Fact{
			{Origin: "researcher", Content: "v2 API drops basic auth", Assumption: true},
		},
		History: []models.AgentFeedback{
			{DelegationID: "d1", Status: models.FeedbackCompleted, Output: &models.WorkerOutput{Summary: "surveyed endpoints"}},
		},
		Answers: []models.Answer{{QuestionID: "q1", Text: "target v2 only"}},
	}

	prompt := buildDecisionPrompt(pc)
	for _, want := range []string{
		"write the migration guide",
		"researcher, writer",
		"(assumption) v2 API drops basic auth",
		"d1 (completed): surveyed endpoints",
		"Q[q1]: target v2 only",
		"iteration 3",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
