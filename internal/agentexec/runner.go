// Package agentexec abstracts how delegated work actually gets done.
// The engine only sees the Runner interface; the API-backed runner,
// the per-role pool, and the timeout machinery live behind it.
package agentexec

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a unit exceeds its idle or absolute
// timeout. Callers match it with errors.Is.
var ErrTimeout = errors.New("agent execution timed out")

// Runner executes one delegation prompt under a named role.
// This abstraction allows mocking agent execution in tests.
type Runner interface {
	// Run sends the prompt to an agent playing the given role and
	// returns the raw text response. A timeout of zero means the
	// caller's context is the only bound.
	Run(ctx context.Context, role, prompt string, timeout time.Duration) (string, error)
}

// ProgressRunner is implemented by runners that stream partial output.
// The engine pairs it with an IdleWatch: progress must be called on
// every partial event so the idle timer keeps resetting. Runners that
// make a single blocking exchange (the API runner) only get the
// absolute timeout.
type ProgressRunner interface {
	Runner
	RunWithProgress(ctx context.Context, role, prompt string, progress func()) (string, error)
}
