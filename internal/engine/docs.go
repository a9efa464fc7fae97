package engine

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/internal/feedback"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// waveDocs renders the compact and detailed markdown documents for one
// executed wave from the feedback the loop collected for its units.
func waveDocs(index int, wave models.Wave, loop *feedback.Loop) (compact, detailed string) {
	latest := make(map[string]*models.AgentFeedback)
	for _, fb := range loop.History() {
		latest[fb.DelegationID] = fb
	}

	var cb, db strings.Builder
	fmt.Fprintf(&cb, "# Wave %d\n\n", index)
	fmt.Fprintf(&db, "# Wave %d — detailed\n\n", index)

	for _, d := range wave.Delegations {
		fb := latest[d.ID]
		if fb == nil {
			fmt.Fprintf(&cb, "## %s (%s)\n\nNo report received.\n\n", d.ID, d.AgentID)
			fmt.Fprintf(&db, "## %s (%s)\n\nNo report received.\n\n", d.ID, d.AgentID)
			continue
		}

		fmt.Fprintf(&cb, "## %s (%s) — %s\n\n", d.ID, d.AgentID, fb.Status)
		fmt.Fprintf(&db, "## %s (%s) — %s\n\n", d.ID, d.AgentID, fb.Status)

		switch {
		case fb.Output != nil && fb.Output.Summary != "":
			cb.WriteString(fb.Output.Summary)
			cb.WriteString("\n\n")
		case fb.Error != "":
			fmt.Fprintf(&cb, "Error: %s\n\n", fb.Error)
		}

		if fb.Output != nil {
			if fb.Output.Detailed != "" {
				db.WriteString(fb.Output.Detailed)
				db.WriteString("\n\n")
			} else if fb.Output.Summary != "" {
				db.WriteString(fb.Output.Summary)
				db.WriteString("\n\n")
			}
			writeList(&db, "Criteria met", fb.Output.CriteriaMet)
			writeList(&db, "Criteria unmet", fb.Output.CriteriaUnmet)
			writeList(&db, "Assumptions", fb.Output.Assumptions)
			writeList(&db, "Side effects", fb.Output.SideEffects)
		}
		if fb.Error != "" {
			fmt.Fprintf(&db, "Error: %s\n\n", fb.Error)
		}
	}

	return cb.String(), db.String()
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}
