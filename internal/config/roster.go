package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AgentSpec describes one worker role in the roster.
type AgentSpec struct {
	// Name is the role the planner delegates to.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// SystemPrompt frames every prompt sent under this role.
	SystemPrompt string `yaml:"system_prompt"`
	// MaxInstances bounds concurrent workers of this role. Zero means 1.
	MaxInstances int `yaml:"max_instances"`
}

// Roster is the set of agent roles a run can delegate to.
type Roster struct {
	Agents []AgentSpec `yaml:"agents"`
}

// RosterPath returns the project-local roster file path.
func RosterPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".dispatch", "agents.yaml")
}

// LoadRoster reads and validates an agents.yaml file.
func LoadRoster(path string) (*Roster, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(content, &roster); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	if len(roster.Agents) == 0 {
		return nil, fmt.Errorf("roster %s defines no agents", path)
	}

	seen := make(map[string]bool)
	for i, a := range roster.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("roster agent %d has no name", i)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate roster agent %q", a.Name)
		}
		seen[a.Name] = true
		if a.SystemPrompt == "" {
			return nil, fmt.Errorf("roster agent %q has no system prompt", a.Name)
		}
	}

	return &roster, nil
}

// Names returns the role names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.Agents))
	for i, a := range r.Agents {
		names[i] = a.Name
	}
	return names
}

// Prompts maps role name to system prompt.
func (r *Roster) Prompts() map[string]string {
	prompts := make(map[string]string, len(r.Agents))
	for _, a := range r.Agents {
		prompts[a.Name] = a.SystemPrompt
	}
	return prompts
}

// Limits maps role name to max concurrent instances.
func (r *Roster) Limits() map[string]int {
	limits := make(map[string]int, len(r.Agents))
	for _, a := range r.Agents {
		max := a.MaxInstances
		if max < 1 {
			max = 1
		}
		limits[a.Name] = max
	}
	return limits
}

// DefaultRosterYAML is the roster scaffolded by `dispatch init`.
const DefaultRosterYAML = `agents:
  - name: researcher
    description: Gathers information and verifies facts.
    system_prompt: |
      You research questions thoroughly and report findings as facts
      with confidence levels. You never guess silently; uncertain
      findings are marked as assumptions.
    max_instances: 2
  - name: writer
    description: Produces and edits documents.
    system_prompt: |
      You write clear, structured documents from the inputs provided.
      When required inputs are missing, report blocked with the exact
      questions that would unblock you.
    max_instances: 2
  - name: reviewer
    description: Checks work against acceptance criteria.
    system_prompt: |
      You review completed work against its acceptance criteria and
      report which criteria are met and unmet, with evidence.
    max_instances: 1
`
