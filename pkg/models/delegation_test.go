package models

import "testing"

func TestDelegationStatusValid(t *testing.T) {
	valid := []DelegationStatus{
		DelegationStatusPending,
		DelegationStatusRunning,
		DelegationStatusCompleted,
		DelegationStatusFailed,
		DelegationStatusBlocked,
		DelegationStatusNeedsClarification,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if DelegationStatus("done").Valid() {
		t.Error("expected 'done' to be invalid")
	}
	if DelegationStatus("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestDelegationStatusTerminal(t *testing.T) {
	if DelegationStatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	if DelegationStatusRunning.Terminal() {
		t.Error("running should not be terminal")
	}
	for _, s := range []DelegationStatus{
		DelegationStatusCompleted,
		DelegationStatusFailed,
		DelegationStatusBlocked,
		DelegationStatusNeedsClarification,
	} {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
}

func TestMissingInputs(t *testing.T) {
	d := &Delegation{
		RequiredInputs: []string{"schema", "api-key", "spec"},
		ProvidedInputs: []string{"spec", "schema"},
	}

	missing := d.MissingInputs()
	if len(missing) != 1 || missing[0] != "api-key" {
		t.Errorf("expected [api-key], got %v", missing)
	}
}

func TestMissingInputsNoneRequired(t *testing.T) {
	d := &Delegation{ProvidedInputs: []string{"spec"}}
	if missing := d.MissingInputs(); missing != nil {
		t.Errorf("expected nil, got %v", missing)
	}
}

func TestWaveIDs(t *testing.T) {
	w := Wave{
		Index: 2,
		Delegations: []*Delegation{
			{ID: "a"},
			{ID: "b"},
		},
	}
	ids := w.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected [a b], got %v", ids)
	}
}
