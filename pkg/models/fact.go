package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fact is an entry in the shared, persisted knowledge pool. Facts are
// never deleted; a duplicate is marked superseded instead.
type Fact struct {
	// ID is content-addressed when not explicitly supplied.
	ID      string `json:"id"`
	Content string `json:"content"`
	// Origin tags where the fact came from (agent role, "planner", "user").
	Origin string `json:"origin"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	// Assumption marks facts the worker assumed rather than verified.
	Assumption bool `json:"assumption,omitempty"`
	// Sources lists delegation or artifact references backing the fact.
	Sources []string `json:"sources,omitempty"`
	// SupersededBy points at a newer fact with identical content+origin.
	SupersededBy string `json:"superseded_by,omitempty"`
}

// NewFactID derives the content-addressed fact identifier.
func NewFactID(content, origin string) string {
	sum := sha256.Sum256([]byte(origin + "\x00" + content))
	return hex.EncodeToString(sum[:])[:16]
}

// NewFact builds a fact with a derived ID and clamped confidence.
func NewFact(content, origin string, confidence float64) Fact {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Fact{
		ID:         NewFactID(content, origin),
		Content:    content,
		Origin:     origin,
		Confidence: confidence,
	}
}

// Live returns true if the fact has not been superseded.
func (f Fact) Live() bool {
	return f.SupersededBy == ""
}
