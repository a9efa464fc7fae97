package agentexec

import (
	"errors"
	"testing"
)

func TestRolePoolAcquireRelease(t *testing.T) {
	p := NewRolePool(map[string]int{"researcher": 2})

	if err := p.Acquire("researcher"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := p.Acquire("researcher"); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := p.InUse("researcher"); got != 2 {
		t.Errorf("expected 2 in use, got %d", got)
	}

	p.Release("researcher")
	if err := p.Acquire("researcher"); err != nil {
		t.Errorf("acquire after release should succeed: %v", err)
	}
}

func TestRolePoolExhausted(t *testing.T) {
	p := NewRolePool(map[string]int{"writer": 1})

	if err := p.Acquire("writer"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err := p.Acquire("writer")
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestRolePoolUnknownRole(t *testing.T) {
	p := NewRolePool(map[string]int{"writer": 1})
	if err := p.Acquire("ghost"); err == nil {
		t.Error("acquiring an unregistered role must fail")
	}
}

func TestRolePoolNormalizesLimits(t *testing.T) {
	p := NewRolePool(map[string]int{"reviewer": 0})
	if got := p.Limit("reviewer"); got != 1 {
		t.Errorf("non-positive limit should normalize to 1, got %d", got)
	}
}

func TestRolePoolReleaseWithoutAcquire(t *testing.T) {
	p := NewRolePool(map[string]int{"writer": 1})
	p.Release("writer")
	if got := p.InUse("writer"); got != 0 {
		t.Errorf("in-use count must not go negative, got %d", got)
	}
}
