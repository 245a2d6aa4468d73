package diff

import (
	"fmt"
	"strings"
)

// Display caps used by the console report.
const (
	DefaultMaxUnique = 30
	DefaultMaxPairs  = 15
)

// Summary is a display-ready view of a Result.
type Summary struct {
	Left, Right string

	Unique1       []string
	Unique1Hidden int
	Unique2       []string
	Unique2Hidden int
	Pairs         []Pair
	PairsHidden   int

	Suggestions []string
}

// Summarize caps the unique lists and pairs for display and builds
// remediation suggestions. left and right name the two devices.
func (r *Result) Summarize(left, right string, maxUnique, maxPairs int) *Summary {
	s := &Summary{Left: left, Right: right}
	s.Unique1, s.Unique1Hidden = capLines(r.Unique1, maxUnique)
	s.Unique2, s.Unique2Hidden = capLines(r.Unique2, maxUnique)

	s.Pairs = r.Pairs
	if maxPairs > 0 && len(r.Pairs) > maxPairs {
		s.Pairs = r.Pairs[:maxPairs]
		s.PairsHidden = len(r.Pairs) - maxPairs
	}

	if n := len(r.Unique1) + len(r.Unique2); n > 0 {
		s.Suggestions = append(s.Suggestions, fmt.Sprintf("found %d truly different configuration lines", n))
	}
	if len(r.Unique1) > 0 {
		s.Suggestions = append(s.Suggestions,
			fmt.Sprintf("to sync %s with %s: apply the %d lines missing from %s", right, left, len(r.Unique1), right))
	}
	if len(r.Unique2) > 0 {
		s.Suggestions = append(s.Suggestions,
			fmt.Sprintf("to sync %s with %s: apply the %d lines missing from %s", left, right, len(r.Unique2), left))
	}
	if len(r.Pairs) > 0 {
		s.Suggestions = append(s.Suggestions,
			fmt.Sprintf("%d lines differ only in device-specific values (addresses, hostnames, AS numbers); these are expected", len(r.Pairs)))
	}
	if !r.Identical() {
		s.Suggestions = append(s.Suggestions,
			"use 'rollback' to remove unwanted lines and 'commit' to add missing ones")
	}
	return s
}

func capLines(lines []string, max int) ([]string, int) {
	if max <= 0 || len(lines) <= max {
		return lines, 0
	}
	return lines[:max], len(lines) - max
}

// Filter drops every line containing one of the patterns as a substring.
// It returns the kept lines and how many were dropped.
func Filter(lines []string, patterns []string) ([]string, int) {
	if len(patterns) == 0 {
		return lines, 0
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if matchesAny(line, patterns) {
			continue
		}
		kept = append(kept, line)
	}
	return kept, len(lines) - len(kept)
}

func matchesAny(line string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(line, p) {
			return true
		}
	}
	return false
}
