package delegation

import "testing"

func TestKeywordSkipTrivial(t *testing.T) {
	s := NewKeywordSkipStrategy()

	trivial := []string{
		"Fix typo in error message",
		"Rename helper function",
		"Update README with install steps",
	}
	for _, task := range trivial {
		if !s.CanSkipAnalysis(task, nil) {
			t.Errorf("expected %q to skip analysis", task)
		}
	}
}

func TestKeywordSkipStructuralWins(t *testing.T) {
	s := NewKeywordSkipStrategy()

	// A structural keyword forces analysis even alongside a trivial one.
	if s.CanSkipAnalysis("Rename table as part of schema migration", nil) {
		t.Error("structural keyword should force analysis")
	}
}

func TestKeywordSkipDefaultNo(t *testing.T) {
	s := NewKeywordSkipStrategy()
	if s.CanSkipAnalysis("Implement payment retry queue", nil) {
		t.Error("non-trivial task should not skip analysis")
	}
}
