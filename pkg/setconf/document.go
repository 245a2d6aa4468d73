// Package setconf handles Junos configuration in "set" format: cleaning,
// syntax validation, statistics and the set/delete inversion used by rollback.
//
// A Document is produced once from operator input and is treated as immutable
// by every later stage. A LineSet is the unordered view used for set algebra
// against device configuration.
package setconf

import (
	"sort"
	"strings"
)

// Verbs accepted as the first token of a configuration line.
var Verbs = map[string]bool{
	"set":        true,
	"delete":     true,
	"deactivate": true,
	"activate":   true,
	"protect":    true,
	"unprotect":  true,
}

// Verb returns the lower-cased first token of a line.
func Verb(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Hierarchy returns the top-level hierarchy named by a line, or "".
func Hierarchy(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// Document is an ordered sequence of cleaned, validated configuration lines.
type Document struct {
	lines    []string
	warnings []string
}

// NewDocument builds a document from already-cleaned lines.
func NewDocument(lines []string, warnings ...string) *Document {
	return &Document{
		lines:    append([]string(nil), lines...),
		warnings: append([]string(nil), warnings...),
	}
}

// Lines returns a copy of the document lines in order.
func (d *Document) Lines() []string {
	return append([]string(nil), d.lines...)
}

// Len returns the number of lines.
func (d *Document) Len() int {
	return len(d.lines)
}

// Warnings returns the non-fatal findings recorded during validation.
func (d *Document) Warnings() []string {
	return append([]string(nil), d.warnings...)
}

// String renders the document as newline-separated text, ready to load.
func (d *Document) String() string {
	return strings.Join(d.lines, "\n")
}

// LineSet returns the deduplicated view of the document.
func (d *Document) LineSet() LineSet {
	return NewLineSet(d.lines...)
}

// LineSet is an unordered, deduplicated set of configuration lines.
type LineSet map[string]struct{}

// NewLineSet creates a set from lines.
func NewLineSet(lines ...string) LineSet {
	s := make(LineSet, len(lines))
	for _, l := range lines {
		s[l] = struct{}{}
	}
	return s
}

// Len returns the number of distinct lines.
func (s LineSet) Len() int {
	return len(s)
}

// Contains reports whether line is in the set.
func (s LineSet) Contains(line string) bool {
	_, ok := s[line]
	return ok
}

// Intersect returns the lines present in both sets.
func (s LineSet) Intersect(other LineSet) LineSet {
	out := make(LineSet)
	for l := range s {
		if other.Contains(l) {
			out[l] = struct{}{}
		}
	}
	return out
}

// Difference returns the lines of s that are not in other.
func (s LineSet) Difference(other LineSet) LineSet {
	out := make(LineSet)
	for l := range s {
		if !other.Contains(l) {
			out[l] = struct{}{}
		}
	}
	return out
}

// Sorted returns the lines in lexical order.
func (s LineSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// ParseDeviceText splits configuration text returned by a device into lines,
// trimming each and dropping blanks and "#" comment lines.
func ParseDeviceText(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
