package interaction

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestConsoleAskQuestions(t *testing.T) {
	in := strings.NewReader("use postgres\nskip it\n")
	var out bytes.Buffer
	c := NewConsoleWith(in, &out)

	questions := []models.Question{
		models.NewQuestion("planner", "Which database?", models.QuestionCritical),
		models.NewQuestion("worker1", "Update docs too?", models.QuestionOptional),
	}
	answers, err := c.AskQuestions(questions)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].QuestionID != questions[0].ID || answers[0].Text != "use postgres" {
		t.Errorf("unexpected first answer: %+v", answers[0])
	}
	if answers[1].Text != "skip it" {
		t.Errorf("unexpected second answer: %+v", answers[1])
	}
	if !strings.Contains(out.String(), "Which database?") {
		t.Error("question text not rendered")
	}
}

func TestConsoleAskQuestionsTruncatedInput(t *testing.T) {
	in := strings.NewReader("only one\n")
	c := NewConsoleWith(in, &bytes.Buffer{})

	questions := []models.Question{
		models.NewQuestion("p", "first?", models.QuestionClarification),
		models.NewQuestion("p", "second?", models.QuestionClarification),
	}
	answers, err := c.AskQuestions(questions)
	if err == nil {
		t.Error("exhausted input must error")
	}
	if len(answers) != 1 {
		t.Errorf("expected the one collected answer, got %d", len(answers))
	}
}

func TestConsoleConfirmation(t *testing.T) {
	cases := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"no\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\nwhat\n", true, true}, // two garbage answers fall back to default
	}
	for _, tc := range cases {
		c := NewConsoleWith(strings.NewReader(tc.input), &bytes.Buffer{})
		got, err := c.RequestConfirmation("proceed?", tc.def)
		if err != nil {
			t.Fatalf("confirm %q: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("input %q def %v: expected %v, got %v", tc.input, tc.def, tc.want, got)
		}
	}
}

func TestCallbackDefaults(t *testing.T) {
	cb := &Callback{}
	if _, err := cb.AskQuestions([]models.Question{models.NewQuestion("p", "x?", models.QuestionCritical)}); err != ErrNoInteraction {
		t.Errorf("expected ErrNoInteraction, got %v", err)
	}
	ok, err := cb.RequestConfirmation("proceed?", true)
	if err != nil || !ok {
		t.Errorf("nil OnConfirm should return the default, got %v %v", ok, err)
	}
	cb.Notify("dropped silently")
}

func TestCallbackDelegates(t *testing.T) {
	var asked []models.Question
	cb := &Callback{
		OnAsk: func(qs []models.Question) ([]models.Answer, error) {
			asked = qs
			return []models.Answer{{QuestionID: qs[0].ID, Text: "answered"}}, nil
		},
	}
	q := models.NewQuestion("p", "x?", models.QuestionCritical)
	answers, err := cb.AskQuestions([]models.Question{q})
	if err != nil || len(answers) != 1 || len(asked) != 1 {
		t.Errorf("callback not delegated: %v %v", answers, err)
	}
}
