// Package executor runs delegation waves concurrently under a bounded
// worker pool with aggregate timeouts.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Result records the outcome of one unit's execution, regardless of
// whether it succeeded, failed, panicked, or timed out.
type Result struct {
	UnitID   string        `json:"unit_id"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecuteFunc executes one delegation and returns its raw result text.
// It must respect ctx cancellation for best-effort unit cancellation.
type ExecuteFunc func(ctx context.Context, d *models.Delegation) (string, error)

// Parallel executes sets of delegations concurrently up to a worker bound.
type Parallel struct {
	workers int64
	logf    func(format string, args ...interface{})
}

// NewParallel creates an executor with the given worker-pool bound.
// A bound below one is coerced to one.
func NewParallel(maxWorkers int) *Parallel {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Parallel{
		workers: int64(maxWorkers),
		logf:    func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (p *Parallel) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.logf = fn
	}
}

// Execute submits every unit to the pool at once and waits until all
// resolve or the aggregate timeout elapses. Units still outstanding at
// the timeout are cancelled best-effort and recorded as timed-out
// failures; the call never blocks past the timeout. A panic or error in
// one unit never aborts its siblings.
func (p *Parallel) Execute(ctx context.Context, units []*models.Delegation, fn ExecuteFunc, timeout time.Duration) map[string]Result {
	results := make(map[string]Result, len(units))
	if len(units) == 0 {
		return results
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	sem := semaphore.NewWeighted(p.workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(r Result) {
		mu.Lock()
		// First writer wins: a late completion never overwrites a
		// timeout entry already handed back to the caller.
		if _, exists := results[r.UnitID]; !exists {
			results[r.UnitID] = r
		}
		mu.Unlock()
	}

	start := time.Now()
	for _, unit := range units {
		wg.Add(1)
		go func(d *models.Delegation) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					record(Result{
						UnitID:   d.ID,
						Success:  false,
						Error:    fmt.Sprintf("panic: %v", r),
						Duration: time.Since(start),
					})
				}
			}()

			if err := sem.Acquire(execCtx, 1); err != nil {
				record(Result{
					UnitID:   d.ID,
					Success:  false,
					Error:    fmt.Sprintf("timeout waiting for worker slot: %v", err),
					Duration: time.Since(start),
				})
				return
			}
			defer sem.Release(1)

			unitStart := time.Now()
			out, err := fn(execCtx, d)
			elapsed := time.Since(unitStart)
			if err != nil {
				p.logf("[executor] unit %s failed after %s: %v", d.ID, elapsed, err)
				record(Result{UnitID: d.ID, Success: false, Error: err.Error(), Duration: elapsed})
				return
			}
			record(Result{UnitID: d.ID, Success: true, Output: out, Duration: elapsed})
		}(unit)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-execCtx.Done():
		p.logf("[executor] aggregate timeout after %s, cancelling outstanding units", time.Since(start))
	}

	// Snapshot under the lock; stragglers may still be writing.
	mu.Lock()
	out := make(map[string]Result, len(units))
	for id, r := range results {
		out[id] = r
	}
	mu.Unlock()

	for _, unit := range units {
		if _, ok := out[unit.ID]; !ok {
			out[unit.ID] = Result{
				UnitID:   unit.ID,
				Success:  false,
				Error:    fmt.Sprintf("timeout after %s", timeout),
				Duration: time.Since(start),
			}
		}
	}
	return out
}

// ExecuteWaves runs waves strictly in sequence: no unit in wave N+1
// starts before every unit in wave N has resolved. When stopOnFailure
// is set, remaining waves are skipped after any failed unit; the
// returned flag reports whether that happened.
func (p *Parallel) ExecuteWaves(ctx context.Context, waves []models.Wave, fn ExecuteFunc, waveTimeout time.Duration, stopOnFailure bool) (map[string]Result, bool) {
	all := make(map[string]Result)
	for _, wave := range waves {
		p.logf("[executor] wave %d: executing %d unit(s)", wave.Index, len(wave.Delegations))
		results := p.Execute(ctx, wave.Delegations, fn, waveTimeout)

		failed := false
		for id, r := range results {
			all[id] = r
			if !r.Success {
				failed = true
			}
		}

		if failed && stopOnFailure {
			p.logf("[executor] wave %d had failures, aborting remaining waves", wave.Index)
			return all, true
		}
		if ctx.Err() != nil {
			return all, true
		}
	}
	return all, false
}
