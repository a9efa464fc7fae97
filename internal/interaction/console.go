package interaction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

var questionBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

// Console asks questions over a terminal: styled prompt out, one line
// of answer in per question.
type Console struct {
	in  *bufio.Reader
	out io.Writer
	// UseForm switches to the full-screen bubbletea form when asking.
	// Only sensible when in/out are the real terminal.
	UseForm bool
	now     func() time.Time
}

var _ UserInteraction = (*Console)(nil)

// NewConsole creates a console over stdin/stdout.
func NewConsole() *Console {
	return NewConsoleWith(os.Stdin, os.Stdout)
}

// NewConsoleWith creates a console over explicit streams, used by
// tests and embedding callers.
func NewConsoleWith(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
		now: time.Now,
	}
}

// AskQuestions prints each question and reads a single-line answer.
// Critical questions are visually distinct so the user knows the run
// is blocked on them.
func (c *Console) AskQuestions(questions []models.Question) ([]models.Answer, error) {
	if c.UseForm {
		return RunForm(questions)
	}

	answers := make([]models.Answer, 0, len(questions))
	for i, q := range questions {
		var label string
		switch q.Category {
		case models.QuestionCritical:
			label = color.New(color.FgRed, color.Bold).Sprint("[blocking]")
		case models.QuestionOptional:
			label = color.New(color.FgHiBlack).Sprint("[optional]")
		default:
			label = color.New(color.FgYellow).Sprint("[clarify]")
		}

		body := fmt.Sprintf("%s %s", label, q.Text)
		if q.Context != "" {
			body += "\n" + color.New(color.FgHiBlack).Sprint(q.Context)
		}
		fmt.Fprintf(c.out, "\n%s\n", questionBoxStyle.Render(body))
		fmt.Fprintf(c.out, "(%d/%d) > ", i+1, len(questions))

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return answers, fmt.Errorf("read answer: %w", err)
		}
		answers = append(answers, models.Answer{
			QuestionID: q.ID,
			Text:       strings.TrimSpace(line),
			AnsweredBy: "console",
			CreatedAt:  c.now(),
		})
	}
	return answers, nil
}

// Notify prints a one-way status line.
func (c *Console) Notify(message string) {
	fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgCyan).Sprint("•"), message)
}

// RequestConfirmation asks a y/n question. An empty answer takes the
// default; anything unrecognized is re-asked once, then defaults.
func (c *Console) RequestConfirmation(message string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	for attempt := 0; attempt < 2; attempt++ {
		fmt.Fprintf(c.out, "%s %s ", message, hint)
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return def, fmt.Errorf("read confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
	return def, nil
}
