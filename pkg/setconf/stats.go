package setconf

import (
	"sort"
	"strings"
)

// DefaultPreviewLines is the number of lines shown before a push.
const DefaultPreviewLines = 20

// Statistics summarizes a document for operator display.
type Statistics struct {
	Total       int            `json:"total"`
	Set         int            `json:"set"`
	Delete      int            `json:"delete"`
	Other       int            `json:"other"`
	ByVerb      map[string]int `json:"by_verb"`
	Hierarchies []string       `json:"hierarchies"`
}

// Stats counts lines by verb and lists the distinct top-level hierarchies touched.
func Stats(doc *Document) Statistics {
	st := Statistics{ByVerb: make(map[string]int)}
	seen := make(map[string]bool)

	for _, line := range doc.lines {
		st.Total++
		verb := Verb(line)
		st.ByVerb[verb]++
		switch verb {
		case "set":
			st.Set++
		case "delete":
			st.Delete++
		default:
			st.Other++
		}
		if h := Hierarchy(line); h != "" && !seen[h] {
			seen[h] = true
			st.Hierarchies = append(st.Hierarchies, h)
		}
	}
	sort.Strings(st.Hierarchies)
	return st
}

// Preview returns at most max lines of the document and how many were left out.
func Preview(doc *Document, max int) ([]string, int) {
	if max <= 0 || doc.Len() <= max {
		return doc.Lines(), 0
	}
	return append([]string(nil), doc.lines[:max]...), doc.Len() - max
}

// InvertLine swaps a leading "set " for "delete " and vice versa.
// Other verbs are returned unchanged with ok == false.
func InvertLine(line string) (string, bool) {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "set "):
		return "delete " + line[len("set "):], true
	case strings.HasPrefix(lower, "delete "):
		return "set " + line[len("delete "):], true
	}
	return line, false
}

// RollbackLines inverts every set/delete line of doc. Lines with any other
// verb are returned in skipped and never guessed at.
func RollbackLines(doc *Document) (converted, skipped []string) {
	for _, line := range doc.lines {
		if inv, ok := InvertLine(line); ok {
			converted = append(converted, inv)
		} else {
			skipped = append(skipped, line)
		}
	}
	return converted, skipped
}
