package agentexec

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPoolExhausted is returned when every instance of a role is busy.
var ErrPoolExhausted = errors.New("no idle agent instance for role")

// RolePool bounds how many instances of each agent role may run at
// once. Acquire beyond the role's maximum is a hard error rather than
// a wait: the wave scheduler is responsible for never over-committing.
type RolePool struct {
	mu     sync.Mutex
	limits map[string]int
	inUse  map[string]int
}

// NewRolePool creates a pool from role name to max concurrent
// instances. Roles with a non-positive limit are treated as limit 1.
func NewRolePool(limits map[string]int) *RolePool {
	normalized := make(map[string]int, len(limits))
	for role, max := range limits {
		if max < 1 {
			max = 1
		}
		normalized[role] = max
	}
	return &RolePool{
		limits: normalized,
		inUse:  make(map[string]int),
	}
}

// Acquire reserves one instance of the role. The caller must Release
// it when done.
func (p *RolePool) Acquire(role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	max, ok := p.limits[role]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	if p.inUse[role] >= max {
		return fmt.Errorf("%w %q: %d of %d in use", ErrPoolExhausted, role, p.inUse[role], max)
	}
	p.inUse[role]++
	return nil
}

// Release returns one instance of the role to the pool. Releasing a
// role that has no acquired instances is a no-op.
func (p *RolePool) Release(role string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse[role] > 0 {
		p.inUse[role]--
	}
}

// InUse returns how many instances of the role are currently acquired.
func (p *RolePool) InUse(role string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse[role]
}

// Limit returns the configured maximum for the role, or zero when the
// role is unknown.
func (p *RolePool) Limit(role string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limits[role]
}
