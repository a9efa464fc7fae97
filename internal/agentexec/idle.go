package agentexec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// IdleWatch enforces two timeouts on a running unit: an idle timeout
// that resets whenever the unit reports progress, and an absolute
// timeout that never resets. Exceeding either cancels the watched
// context with a cause wrapping ErrTimeout, failing that unit only.
type IdleWatch struct {
	// Idle is the maximum silence between progress signals. Zero
	// disables the idle timer.
	Idle time.Duration
	// Absolute is the hard ceiling on total runtime. Zero disables it.
	Absolute time.Duration
}

// Start derives a context from parent that is cancelled when either
// timeout fires. The returned progress function resets the idle timer;
// stop releases both timers and must be called when the unit finishes.
func (w IdleWatch) Start(parent context.Context) (ctx context.Context, progress func(), stop func()) {
	ctx, cancel := context.WithCancelCause(parent)

	var mu sync.Mutex
	var idleTimer, absTimer *time.Timer
	stopped := false

	if w.Idle > 0 {
		idleTimer = time.AfterFunc(w.Idle, func() {
			cancel(fmt.Errorf("%w: no progress for %s", ErrTimeout, w.Idle))
		})
	}
	if w.Absolute > 0 {
		absTimer = time.AfterFunc(w.Absolute, func() {
			cancel(fmt.Errorf("%w: exceeded %s total", ErrTimeout, w.Absolute))
		})
	}

	progress = func() {
		mu.Lock()
		defer mu.Unlock()
		if !stopped && idleTimer != nil {
			idleTimer.Reset(w.Idle)
		}
	}

	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if idleTimer != nil {
			idleTimer.Stop()
		}
		if absTimer != nil {
			absTimer.Stop()
		}
		cancel(nil)
	}

	return ctx, progress, stop
}

// TimedOut reports whether the context was cancelled by an IdleWatch
// timeout rather than by its parent.
func TimedOut(ctx context.Context) bool {
	cause := context.Cause(ctx)
	return cause != nil && errors.Is(cause, ErrTimeout)
}
