package models

import "testing"

func TestNewFactIDContentAddressed(t *testing.T) {
	a := NewFactID("the API uses cursor pagination", "researcher")
	b := NewFactID("the API uses cursor pagination", "researcher")
	if a != b {
		t.Error("identical content+origin should produce the same ID")
	}

	c := NewFactID("the API uses cursor pagination", "builder")
	if a == c {
		t.Error("different origins should produce different IDs")
	}
}

func TestNewFactClampsConfidence(t *testing.T) {
	if f := NewFact("x", "y", 1.5); f.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", f.Confidence)
	}
	if f := NewFact("x", "y", -0.2); f.Confidence != 0 {
		t.Errorf("expected confidence clamped to 0, got %v", f.Confidence)
	}
}

func TestFactLive(t *testing.T) {
	f := NewFact("x", "y", 0.8)
	if !f.Live() {
		t.Error("new fact should be live")
	}
	f.SupersededBy = "abc123"
	if f.Live() {
		t.Error("superseded fact should not be live")
	}
}
