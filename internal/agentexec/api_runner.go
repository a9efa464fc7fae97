package agentexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/dispatch/internal/api"
)

// APIRunner executes delegation prompts against the Anthropic API,
// mapping each role to its roster system prompt.
type APIRunner struct {
	runner  *api.Runner
	prompts map[string]string
}

// Compile-time interface check.
var _ Runner = (*APIRunner)(nil)

// NewAPIRunner creates a runner over the given client. prompts maps
// role names to system prompts; a role missing from the map is an
// error at Run time, not here.
func NewAPIRunner(client *api.Client, prompts map[string]string) *APIRunner {
	return &APIRunner{
		runner:  api.NewRunner(client),
		prompts: prompts,
	}
}

// Run sends the prompt under the role's system prompt.
func (r *APIRunner) Run(ctx context.Context, role, prompt string, timeout time.Duration) (string, error) {
	system, ok := r.prompts[role]
	if !ok {
		return "", fmt.Errorf("no system prompt registered for role %q", role)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	response, err := r.runner.RunWithSystem(ctx, system, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return "", err
	}
	return response, nil
}
