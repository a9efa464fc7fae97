package interaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

var (
	formTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	formCriticalStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196"))

	formContextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	formProgressStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39"))
)

// formModel walks the user through questions one at a time.
type formModel struct {
	questions []models.Question
	input     textinput.Model
	answers   []string
	index     int
	aborted   bool
}

func newFormModel(questions []models.Question) formModel {
	ti := textinput.New()
	ti.Placeholder = "Type an answer and press Enter..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 72

	return formModel{
		questions: questions,
		input:     ti,
		answers:   make([]string, 0, len(questions)),
	}
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			// Critical questions must not be skipped with an empty
			// answer; the run is blocked on them.
			if text == "" && m.questions[m.index].Category == models.QuestionCritical {
				return m, nil
			}
			m.answers = append(m.answers, text)
			m.index++
			m.input.Reset()
			if m.index >= len(m.questions) {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m formModel) View() string {
	if m.index >= len(m.questions) {
		return ""
	}
	q := m.questions[m.index]

	var sb strings.Builder
	sb.WriteString(formProgressStyle.Render(fmt.Sprintf("Question %d of %d", m.index+1, len(m.questions))))
	sb.WriteString("\n\n")
	if q.Category == models.QuestionCritical {
		sb.WriteString(formCriticalStyle.Render("BLOCKING "))
	}
	sb.WriteString(formTitleStyle.Render(q.Text))
	if q.Context != "" {
		sb.WriteString("\n")
		sb.WriteString(formContextStyle.Render(q.Context))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n\n")
	sb.WriteString(formContextStyle.Render("enter to submit · esc to abort"))
	return sb.String()
}

// RunForm presents the questions in a full-screen form and returns the
// collected answers.
func RunForm(questions []models.Question) ([]models.Answer, error) {
	if len(questions) == 0 {
		return nil, nil
	}

	final, err := tea.NewProgram(newFormModel(questions)).Run()
	if err != nil {
		return nil, fmt.Errorf("run question form: %w", err)
	}

	m, ok := final.(formModel)
	if !ok || m.aborted {
		return nil, fmt.Errorf("question form aborted")
	}

	now := time.Now()
	answers := make([]models.Answer, len(m.answers))
	for i, text := range m.answers {
		answers[i] = models.Answer{
			QuestionID: questions[i].ID,
			Text:       text,
			AnsweredBy: "form",
			CreatedAt:  now,
		}
	}
	return answers, nil
}
