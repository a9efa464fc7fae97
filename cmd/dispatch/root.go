package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Planner-driven delegation engine",
	Long: `Dispatch turns an objective into delegated work: a planner model
decides what to do each iteration, delegations run in dependency-ordered
waves of parallel workers, and every step is persisted to an append-only
run log so a crashed run resumes where it stopped.

Core capabilities:
- Plans delegations with explicit dependencies and acceptance criteria
- Executes dependency-satisfied waves with bounded concurrency
- Validates worker reports and routes blocking questions to you
- Accumulates validated findings as a shared fact pool
- Resumes interrupted runs from the persisted log`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
