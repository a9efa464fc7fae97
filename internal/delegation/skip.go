package delegation

import "strings"

// SkipStrategy decides whether a task is trivial enough to bypass the
// optional analysis stage. Implementations must be pure functions of
// their inputs so they can be swapped without touching the scheduler.
type SkipStrategy interface {
	CanSkipAnalysis(task string, context map[string]any) bool
}

// KeywordSkipStrategy classifies tasks by keyword match. A task skips
// analysis when it contains a trivial-work keyword and none of the
// structural-work keywords.
type KeywordSkipStrategy struct {
	// Trivial marks tasks as safe to skip.
	Trivial []string
	// Structural forces analysis regardless of trivial matches.
	Structural []string
}

// NewKeywordSkipStrategy returns the default keyword classifier.
func NewKeywordSkipStrategy() *KeywordSkipStrategy {
	return &KeywordSkipStrategy{
		Trivial: []string{
			"typo", "rename", "comment", "reword", "formatting",
			"whitespace", "bump version", "update readme", "docstring",
		},
		Structural: []string{
			"refactor", "architecture", "redesign", "migrate",
			"schema", "protocol", "security",
		},
	}
}

// CanSkipAnalysis reports whether the task may bypass analysis.
func (s *KeywordSkipStrategy) CanSkipAnalysis(task string, _ map[string]any) bool {
	lower := strings.ToLower(task)
	for _, kw := range s.Structural {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range s.Trivial {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
