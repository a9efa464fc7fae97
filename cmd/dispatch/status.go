package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ShayCichocki/dispatch/internal/state"
	"github.com/spf13/cobra"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run state",
	Long: `Display the state of dispatch runs in this project.

Shows:
  - The latest (or named) run and its status
  - Delegations grouped by wave
  - Run metrics (iterations, waves, delegations, requests)
  - Recent finished runs`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run-id", "", "Show a specific run instead of the latest")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs yet. Start one with 'dispatch run <objective>'.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var run *state.Run
	if statusRunID != "" {
		run, err = db.GetRun(statusRunID)
	} else {
		run, err = db.GetLatestRun()
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		fmt.Println("No runs yet. Start one with 'dispatch run <objective>'.")
		return nil
	}

	displayRun(run)

	delegations, err := db.ListDelegations(run.ID)
	if err != nil {
		return fmt.Errorf("list delegations: %w", err)
	}
	displayDelegations(delegations)

	metrics, err := db.ListMetrics(run.ID)
	if err != nil {
		return fmt.Errorf("list metrics: %w", err)
	}
	if len(metrics) > 0 {
		fmt.Println("Metrics:")
		for _, m := range metrics {
			fmt.Printf("  %s: %d\n", m.Name, m.Value)
		}
	}

	fmt.Println()
	return displayRecentRuns(db, run.ID)
}

func displayRun(r *state.Run) {
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	fmt.Printf("Run: %s\n", r.ID)
	fmt.Printf("  Objective: %s\n", r.Objective)
	fmt.Printf("  Status: %s\n", r.Status)
	fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(r.StartedAt)))
	fmt.Printf("  Duration: %s\n", formatDuration(end.Sub(r.StartedAt)))
}

func displayDelegations(delegations []state.DelegationRecord) {
	if len(delegations) == 0 {
		fmt.Println("  Delegations: none")
		return
	}

	fmt.Printf("  Delegations: %d\n\n", len(delegations))
	currentWave := -1
	for _, d := range delegations {
		if d.Wave != currentWave {
			currentWave = d.Wave
			fmt.Printf("Wave %d:\n", currentWave)
		}
		line := fmt.Sprintf("  %s [%s] %s: %s", d.ID, d.Status, d.Agent, d.Task)
		if d.Error != "" {
			line += fmt.Sprintf(" (%s)", d.Error)
		}
		fmt.Println(line)
	}
	fmt.Println()
}

func displayRecentRuns(db *state.DB, currentID string) error {
	runs, err := db.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	var recent []state.Run
	for _, r := range runs {
		if r.ID == currentID {
			continue
		}
		recent = append(recent, r)
		if len(recent) >= 5 {
			break
		}
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Println("Recent runs:")
	for _, r := range recent {
		fmt.Printf("  %s: %s (%s ago)\n", r.ID, r.Status, formatDuration(time.Since(r.StartedAt)))
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
