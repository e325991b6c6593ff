// Package formula implements the glob matching internal/lifecycle's gate
// registry uses to apply a gate check to every step/stage whose ID
// matches a pattern, rather than registering one checker per stage name.
package formula

import (
	"path/filepath"
	"strings"
)

// MatchGlob checks if a step ID matches a glob pattern.
// Supported patterns:
//   - "exact" - exact match
//   - "*.suffix" - ends with .suffix
//   - "prefix.*" - starts with prefix.
//   - "*" - matches everything
//   - "prefix.*.suffix" - starts with prefix. and ends with .suffix
func MatchGlob(pattern, stepID string) bool {
	// Use filepath.Match for basic glob support
	matched, err := filepath.Match(pattern, stepID)
	if err == nil && matched {
		return true
	}

	// Handle additional patterns
	if pattern == "*" {
		return true
	}

	// *.suffix pattern (e.g., "*.implement")
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".implement"
		return strings.HasSuffix(stepID, suffix)
	}

	// prefix.* pattern (e.g., "shiny.*")
	if strings.HasSuffix(pattern, ".*") {
		prefix := pattern[:len(pattern)-1] // "shiny."
		return strings.HasPrefix(stepID, prefix)
	}

	// Exact match
	return pattern == stepID
}
