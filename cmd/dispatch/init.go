package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a dispatch project",
	Long: `Initialize a directory for use with dispatch.

This command sets up everything needed to start a run:
  - Creates the .dispatch directory structure
  - Scaffolds an agents.yaml roster you can edit
  - Creates a project config template
  - Adds run artifacts to .gitignore when one exists

The directory argument is optional and defaults to the current directory.

Examples:
  dispatch init              # Initialize current directory
  dispatch init ./myproject  # Initialize specific directory
  dispatch init --force      # Overwrite an existing roster and config`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing roster and config templates")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing dispatch in %s...\n\n", absPath)

	dispatchDir := filepath.Join(absPath, ".dispatch")
	if err := os.MkdirAll(filepath.Join(dispatchDir, "runs"), 0755); err != nil {
		return fmt.Errorf("creating .dispatch directory: %w", err)
	}
	printStatus("✓", "Created .dispatch directory structure", color.FgGreen)

	rosterPath := config.RosterPath(absPath)
	if _, err := os.Stat(rosterPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(rosterPath, []byte(config.DefaultRosterYAML), 0644); err != nil {
			return fmt.Errorf("writing roster: %w", err)
		}
		printStatus("✓", "Created agents.yaml roster (edit roles to taste)", color.FgGreen)
	} else {
		printStatus("✓", "agents.yaml already exists", color.FgGreen)
	}

	if err := writeProjectConfig(dispatchDir); err != nil {
		return err
	}

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	fmt.Printf("\n%s dispatch initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Review the agent roster:")
	fmt.Println("     $EDITOR .dispatch/agents.yaml")
	fmt.Println()
	fmt.Println("  2. Start a run:")
	fmt.Println("     dispatch run \"your objective here\"")
	return nil
}

// writeProjectConfig creates the .dispatch/config.yaml template.
func writeProjectConfig(dispatchDir string) error {
	configPath := filepath.Join(dispatchDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		printStatus("✓", "config.yaml already exists", color.FgGreen)
		return nil
	}

	template := `# Dispatch project configuration
# Overrides defaults from ~/.config/dispatch/config.yaml

# anthropic:
#   model: claude-sonnet-4-20250514
#   use_bedrock: false

# workers:
#   max: 4

# timeouts:
#   unit_idle: 2m
#   unit_absolute: 10m
#   wave: 30m

# limits:
#   planner_cycles: 8
#   iteration_multiplier: 3
`
	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created config.yaml template", color.FgGreen)
	return nil
}

// updateGitignore adds dispatch entries to .gitignore if the project
// has one. A project without .gitignore is left alone.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")
	data, err := os.ReadFile(gitignorePath)
	if err != nil {
		return nil
	}
	existing := string(data)

	entries := []string{
		".dispatch/runs/",
		".dispatch/state.db*",
	}

	needsUpdate := false
	for _, entry := range entries {
		if !strings.Contains(existing, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(existing)
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n# dispatch\n")
	for _, entry := range entries {
		if !strings.Contains(existing, entry) {
			sb.WriteString(entry + "\n")
		}
	}
	if err := os.WriteFile(gitignorePath, []byte(sb.String()), 0644); err != nil {
		return err
	}
	printStatus("✓", "Updated .gitignore with dispatch entries", color.FgGreen)
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
