package executor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func dels(ids ...string) []*models.Delegation {
	out := make([]*models.Delegation, len(ids))
	for i, id := range ids {
		out[i] = &models.Delegation{ID: id}
	}
	return out
}

func TestExecuteAllSucceed(t *testing.T) {
	p := NewParallel(4)
	results := p.Execute(context.Background(), dels("a", "b", "c"), func(_ context.Context, d *models.Delegation) (string, error) {
		return "done-" + d.ID, nil
	}, 5*time.Second)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for id, r := range results {
		if !r.Success {
			t.Errorf("unit %s: expected success, got error %q", id, r.Error)
		}
		if r.Output != "done-"+id {
			t.Errorf("unit %s: unexpected output %q", id, r.Output)
		}
	}
}

func TestExecuteFailureLocalized(t *testing.T) {
	p := NewParallel(4)
	results := p.Execute(context.Background(), dels("ok", "bad"), func(_ context.Context, d *models.Delegation) (string, error) {
		if d.ID == "bad" {
			return "", errors.New("worker exploded")
		}
		return "fine", nil
	}, 5*time.Second)

	if !results["ok"].Success {
		t.Error("sibling should succeed despite another unit failing")
	}
	if results["bad"].Success || results["bad"].Error != "worker exploded" {
		t.Errorf("expected captured failure, got %+v", results["bad"])
	}
}

func TestExecutePanicRecovered(t *testing.T) {
	p := NewParallel(2)
	results := p.Execute(context.Background(), dels("boom", "calm"), func(_ context.Context, d *models.Delegation) (string, error) {
		if d.ID == "boom" {
			panic("unexpected state")
		}
		return "ok", nil
	}, 5*time.Second)

	if results["boom"].Success || !strings.Contains(results["boom"].Error, "panic") {
		t.Errorf("expected recovered panic result, got %+v", results["boom"])
	}
	if !results["calm"].Success {
		t.Error("sibling should be unaffected by panic")
	}
}

func TestExecuteTimeoutRecordsStragglers(t *testing.T) {
	p := NewParallel(4)
	start := time.Now()
	results := p.Execute(context.Background(), dels("slow", "fast"), func(ctx context.Context, d *models.Delegation) (string, error) {
		if d.ID == "slow" {
			select {
			case <-time.After(10 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "quick", nil
	}, 100*time.Millisecond)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Execute blocked past the timeout: %s", elapsed)
	}
	if !results["fast"].Success {
		t.Error("fast sibling should still return normally")
	}
	slow := results["slow"]
	if slow.Success {
		t.Fatal("slow unit should have failed")
	}
	if !strings.Contains(strings.ToLower(slow.Error), "timeout") && !strings.Contains(slow.Error, "deadline") {
		t.Errorf("expected a timeout error, got %q", slow.Error)
	}
}

func TestExecuteNeverBlocksOnUncooperativeUnit(t *testing.T) {
	// A unit that ignores ctx entirely must still not block the call.
	p := NewParallel(2)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	results := p.Execute(context.Background(), dels("stuck"), func(_ context.Context, _ *models.Delegation) (string, error) {
		<-release
		return "", nil
	}, 50*time.Millisecond)

	if time.Since(start) > 2*time.Second {
		t.Fatal("Execute blocked past the aggregate timeout")
	}
	if results["stuck"].Success {
		t.Error("stuck unit should be recorded as a timed-out failure")
	}
}

func TestExecuteWorkerBound(t *testing.T) {
	p := NewParallel(2)
	var current, peak int64

	p.Execute(context.Background(), dels("a", "b", "c", "d", "e"), func(_ context.Context, _ *models.Delegation) (string, error) {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return "", nil
	}, 5*time.Second)

	if got := atomic.LoadInt64(&peak); got > 2 {
		t.Errorf("worker bound violated: peak concurrency %d > 2", got)
	}
}

func TestExecuteWavesStrictSequence(t *testing.T) {
	p := NewParallel(4)
	waves := []models.Wave{
		{Index: 0, Delegations: dels("a1", "a2")},
		{Index: 1, Delegations: dels("b1")},
	}

	var firstWaveDone atomic.Bool
	results, aborted := p.ExecuteWaves(context.Background(), waves, func(_ context.Context, d *models.Delegation) (string, error) {
		if d.ID == "b1" && !firstWaveDone.Load() {
			t.Error("wave 1 started before wave 0 resolved")
		}
		if strings.HasPrefix(d.ID, "a") {
			time.Sleep(30 * time.Millisecond)
			firstWaveDone.Store(true)
		}
		return "ok", nil
	}, 5*time.Second, false)

	if aborted {
		t.Error("should not abort without failures")
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestExecuteWavesStopOnFailure(t *testing.T) {
	p := NewParallel(4)
	waves := []models.Wave{
		{Index: 0, Delegations: dels("fails")},
		{Index: 1, Delegations: dels("never")},
	}

	var ran atomic.Int64
	results, aborted := p.ExecuteWaves(context.Background(), waves, func(_ context.Context, d *models.Delegation) (string, error) {
		ran.Add(1)
		return "", errors.New("nope")
	}, 5*time.Second, true)

	if !aborted {
		t.Error("expected abort flag")
	}
	if ran.Load() != 1 {
		t.Errorf("expected only wave 0 to run, ran %d units", ran.Load())
	}
	if _, ok := results["never"]; ok {
		t.Error("wave 1 should not have results")
	}
}

func TestExecuteEmpty(t *testing.T) {
	p := NewParallel(4)
	results := p.Execute(context.Background(), nil, func(_ context.Context, _ *models.Delegation) (string, error) {
		return "", nil
	}, time.Second)
	if len(results) != 0 {
		t.Errorf("expected empty result map, got %v", results)
	}
}
