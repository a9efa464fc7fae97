package engine

import "sync"

// Counters tracks run progress numbers. All counters live here rather
// than in package-level state so two engines in one process never
// share them.
type Counters struct {
	mu          sync.Mutex
	iterations  int
	nextWave    int
	delegations int
	requests    int
}

// NewCounters creates counters with wave numbering starting at
// firstWave, which is how a resumed run continues where it left off.
func NewCounters(firstWave int) *Counters {
	if firstWave < 0 {
		firstWave = 0
	}
	return &Counters{nextWave: firstWave}
}

// NextIteration increments and returns the iteration count.
func (c *Counters) NextIteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iterations++
	return c.iterations
}

// NextWave returns the next wave index and advances it.
func (c *Counters) NextWave() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	wave := c.nextWave
	c.nextWave++
	return wave
}

// AddDelegations adds to the delegation total.
func (c *Counters) AddDelegations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegations += n
}

// AddRequests adds to the external request total.
func (c *Counters) AddRequests(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests += n
}

// Snapshot returns the current counter values by metric name.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int64{
		"iterations":  int64(c.iterations),
		"waves":       int64(c.nextWave),
		"delegations": int64(c.delegations),
		"requests":    int64(c.requests),
	}
}
