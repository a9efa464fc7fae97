package engine

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// workerReportContract is appended to every delegation prompt so the
// validator has a fighting chance of parsing the response.
const workerReportContract = `Report your result as ONLY a JSON object with this structure (no other text):
{
  "status": "completed|blocked|failed",
  "summary_md": "Compact result summary in markdown",
  "detailed_md": "Full detailed report in markdown",
  "blocking_questions": ["question you cannot proceed without"],
  "optional_questions": ["question that would improve the result"],
  "missing_info": ["information you noticed was missing"],
  "assumptions": ["assumption you made to proceed"],
  "criteria_met": ["acceptance criterion you satisfied"],
  "criteria_unmet": ["acceptance criterion you could not satisfy"],
  "side_effects": ["anything you changed beyond the task"],
  "error": "error description, only when status is failed"
}

Rules:
- status "blocked" requires at least one blocking question.
- status "completed" forbids blocking questions.
- Omit empty fields rather than sending empty strings.`

// buildWorkerPrompt renders one delegation into the prompt its worker
// receives: the task, its acceptance criteria, the shared facts, and
// the report contract.
func buildWorkerPrompt(d *models.Delegation, facts []models.Fact, answers []models.Answer) string {
	var sb strings.Builder

	sb.WriteString("Task:\n")
	sb.WriteString(d.Task)
	sb.WriteString("\n\n")

	if len(d.AcceptanceCriteria) > 0 {
		sb.WriteString("Acceptance criteria:\n")
		for _, c := range d.AcceptanceCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
		sb.WriteString("\n")
	}

	if len(d.ProvidedInputs) > 0 {
		sb.WriteString("Provided inputs: ")
		sb.WriteString(strings.Join(d.ProvidedInputs, ", "))
		sb.WriteString("\n\n")
	}

	if len(d.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range d.Context {
			fmt.Fprintf(&sb, "- %s: %v\n", k, v)
		}
		sb.WriteString("\n")
	}

	if len(facts) > 0 {
		sb.WriteString("Known facts from earlier work:\n")
		for _, f := range facts {
			marker := ""
			if f.Assumption {
				marker = " (assumption)"
			}
			fmt.Fprintf(&sb, "- [%s]%s %s\n", f.Origin, marker, f.Content)
		}
		sb.WriteString("\n")
	}

	if len(answers) > 0 {
		sb.WriteString("User-provided answers:\n")
		for _, a := range answers {
			fmt.Fprintf(&sb, "- %s\n", a.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(workerReportContract)
	return sb.String()
}
