package delegation

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func newTestManager() *Manager {
	return NewManager([]string{"worker1", "worker2", "researcher"})
}

func TestCreateDelegationsBasic(t *testing.T) {
	m := newTestManager()
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "do the thing"},
		{ID: "b", Agent: "worker2", Task: "do the other thing", DependsOn: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dels) != 2 {
		t.Fatalf("expected 2 delegations, got %d", len(dels))
	}
	for _, d := range dels {
		if d.Status != models.DelegationStatusPending {
			t.Errorf("delegation %s: expected pending, got %s", d.ID, d.Status)
		}
	}
}

func TestCreateDelegationsDuplicateID(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "x"},
		{ID: "a", Agent: "worker2", Task: "y"},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestCreateDelegationsDuplicateAcrossBatches(t *testing.T) {
	m := newTestManager()
	if _, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "x"},
	}); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	_, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "again"},
	})
	if err == nil {
		t.Fatal("expected error for id reused across batches")
	}
}

func TestCreateDelegationsUnknownAgent(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "nonexistent", Task: "x"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown agent") {
		t.Fatalf("expected unknown agent error, got %v", err)
	}
}

func TestCreateDelegationsUnknownDependency(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "x", DependsOn: []string{"ghost"}},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown delegation") {
		t.Fatalf("expected unknown dependency error, got %v", err)
	}
}

func TestCreateDelegationsMalformed(t *testing.T) {
	m := newTestManager()
	cases := []models.DelegationSpec{
		{Agent: "worker1", Task: "x"},       // missing id
		{ID: "a", Task: "x"},                // missing agent
		{ID: "b", Agent: "worker1"},         // missing task
		{ID: "c", Agent: "worker1", Task: "   "}, // blank task
	}
	for i, spec := range cases {
		if _, err := m.CreateDelegations([]models.DelegationSpec{spec}); err == nil {
			t.Errorf("case %d: expected error for malformed spec", i)
		}
	}
}

func TestCreateDelegationsDependencyOnCompleted(t *testing.T) {
	m := newTestManager()
	m.SeedCompleted([]string{"previous"})
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "x", DependsOn: []string{"previous"}},
	})
	if err != nil {
		t.Fatalf("dependency on completed delegation should be accepted: %v", err)
	}
	if len(dels) != 1 {
		t.Fatalf("expected 1 delegation, got %d", len(dels))
	}
}

func TestCreateDelegationsBlockedInputs(t *testing.T) {
	m := newTestManager()
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "x", RequiredInputs: []string{"spec", "schema"}, ProvidedInputs: []string{"spec"}},
		{ID: "b", Agent: "worker2", Task: "y"},
	})

	var blockedErr *BlockedInputsError
	if !errors.As(err, &blockedErr) {
		t.Fatalf("expected BlockedInputsError, got %v", err)
	}
	if missing := blockedErr.Missing["a"]; len(missing) != 1 || missing[0] != "schema" {
		t.Errorf("expected a missing [schema], got %v", missing)
	}

	// Both delegations are still registered.
	if len(dels) != 2 {
		t.Fatalf("expected both delegations returned, got %d", len(dels))
	}
	if got := m.Get("a").Status; got != models.DelegationStatusBlocked {
		t.Errorf("expected a blocked, got %s", got)
	}
	if got := m.Get("b").Status; got != models.DelegationStatusPending {
		t.Errorf("expected b pending, got %s", got)
	}
}

func TestExecutionOrderSimpleChain(t *testing.T) {
	m := newTestManager()
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "first"},
		{ID: "b", Agent: "worker1", Task: "second", DependsOn: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	waves, err := m.ExecutionOrder(dels)
	if err != nil {
		t.Fatalf("execution order failed: %v", err)
	}
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(waves))
	}
	if ids := waves[0].IDs(); len(ids) != 1 || ids[0] != "a" {
		t.Errorf("wave 0: expected [a], got %v", ids)
	}
	if ids := waves[1].IDs(); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("wave 1: expected [b], got %v", ids)
	}
}

func TestExecutionOrderCoversAllExactlyOnce(t *testing.T) {
	m := newTestManager()
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t"},
		{ID: "b", Agent: "worker1", Task: "t"},
		{ID: "c", Agent: "worker2", Task: "t", DependsOn: []string{"a", "b"}},
		{ID: "d", Agent: "worker2", Task: "t", DependsOn: []string{"c"}},
		{ID: "e", Agent: "researcher", Task: "t", DependsOn: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	waves, err := m.ExecutionOrder(dels)
	if err != nil {
		t.Fatalf("execution order failed: %v", err)
	}

	seen := make(map[string]int)
	waveOf := make(map[string]int)
	for _, w := range waves {
		for _, d := range w.Delegations {
			seen[d.ID]++
			waveOf[d.ID] = w.Index
		}
	}
	if len(seen) != len(dels) {
		t.Fatalf("waves cover %d delegations, want %d", len(seen), len(dels))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("delegation %s appears %d times", id, n)
		}
	}
	// Every dependency must live in a strictly earlier wave.
	for _, d := range dels {
		for _, dep := range d.DependsOn {
			if waveOf[dep] >= waveOf[d.ID] {
				t.Errorf("%s (wave %d) depends on %s (wave %d)", d.ID, waveOf[d.ID], dep, waveOf[dep])
			}
		}
	}
}

func TestExecutionOrderPrioritySort(t *testing.T) {
	m := newTestManager()
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "low", Agent: "worker1", Task: "t", Priority: 9},
		{ID: "high", Agent: "worker1", Task: "t", Priority: 1},
		{ID: "mid", Agent: "worker2", Task: "t", Priority: 5},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	waves, err := m.ExecutionOrder(dels)
	if err != nil {
		t.Fatalf("execution order failed: %v", err)
	}
	if len(waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(waves))
	}
	ids := waves[0].IDs()
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("expected priority order %v, got %v", want, ids)
		}
	}
}

func TestExecutionOrderCycle(t *testing.T) {
	m := newTestManager()
	dels, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t", DependsOn: []string{"b"}},
		{ID: "b", Agent: "worker1", Task: "t", DependsOn: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := m.ExecutionOrder(dels); err == nil {
		t.Fatal("expected structural error for cycle, got schedule")
	}
}

func TestExecutionOrderExcludesBlocked(t *testing.T) {
	m := newTestManager()
	dels, _ := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t", RequiredInputs: []string{"x"}},
		{ID: "b", Agent: "worker1", Task: "t"},
	})

	waves, err := m.ExecutionOrder(dels)
	if err != nil {
		t.Fatalf("execution order failed: %v", err)
	}
	if len(waves) != 1 || len(waves[0].Delegations) != 1 || waves[0].Delegations[0].ID != "b" {
		t.Errorf("blocked delegation must be excluded from scheduling, got %+v", waves)
	}
}

func TestExecutionOrderDependencyOnBlockedUnsatisfiable(t *testing.T) {
	m := newTestManager()
	dels, _ := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t", RequiredInputs: []string{"x"}},
		{ID: "b", Agent: "worker1", Task: "t", DependsOn: []string{"a"}},
	})

	if _, err := m.ExecutionOrder(dels); err == nil {
		t.Fatal("depending on a blocked delegation should be unsatisfiable")
	}
}

func TestExecutionOrderCrossBatchUnfinishedDependency(t *testing.T) {
	m := newTestManager()
	if _, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t"},
	}); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	second, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "b", Agent: "worker1", Task: "t", DependsOn: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("second batch failed: %v", err)
	}

	_, err = m.ExecutionOrder(second)
	if err == nil {
		t.Fatal("dependency on an unfinished earlier delegation must fail")
	}
	if !strings.Contains(err.Error(), "has not completed") {
		t.Errorf("error should say the dependency exists but is unfinished, got %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	m := newTestManager()
	if _, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t"},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := m.UpdateStatus("a", models.DelegationStatusRunning, "", ""); err != nil {
		t.Fatalf("pending->running failed: %v", err)
	}
	if err := m.UpdateStatus("a", models.DelegationStatusCompleted, "all good", ""); err != nil {
		t.Fatalf("running->completed failed: %v", err)
	}

	// Terminal delegations are immutable.
	if err := m.UpdateStatus("a", models.DelegationStatusFailed, "", "nope"); err == nil {
		t.Fatal("expected error updating a terminal delegation")
	}

	d := m.Get("a")
	if d.Result != "all good" || d.DoneAt == nil {
		t.Errorf("terminal fields not recorded: %+v", d)
	}
}

func TestUpdateStatusUnknown(t *testing.T) {
	m := newTestManager()
	if err := m.UpdateStatus("ghost", models.DelegationStatusRunning, "", ""); err == nil {
		t.Fatal("expected error for unknown delegation")
	}
}

func TestBookkeepingQueries(t *testing.T) {
	m := newTestManager()
	if _, err := m.CreateDelegations([]models.DelegationSpec{
		{ID: "a", Agent: "worker1", Task: "t"},
		{ID: "b", Agent: "worker1", Task: "t"},
		{ID: "c", Agent: "worker2", Task: "t"},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mustUpdate := func(id string, st models.DelegationStatus) {
		t.Helper()
		if err := m.UpdateStatus(id, models.DelegationStatusRunning, "", ""); err != nil {
			t.Fatalf("to running: %v", err)
		}
		if err := m.UpdateStatus(id, st, "", ""); err != nil {
			t.Fatalf("to %s: %v", st, err)
		}
	}
	mustUpdate("a", models.DelegationStatusCompleted)
	mustUpdate("b", models.DelegationStatusFailed)

	if got := m.Completed(); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Completed() = %v", got)
	}
	if got := m.Failed(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Failed() = %v", got)
	}
	if got := m.Pending(); len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Pending() = %v", got)
	}
}
