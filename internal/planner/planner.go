package planner

import "context"

// Planner produces the next decision for a run. Implementations must
// be safe for sequential reuse; the engine never calls NextDecision
// concurrently.
type Planner interface {
	NextDecision(ctx context.Context, pc *Context) (*Decision, error)
}
