package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// OpKind classifies one span of a word alignment.
type OpKind string

const (
	OpEqual   OpKind = "equal"
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpReplace OpKind = "replace"
)

// Op is one aligned span. Left holds the words from the first line and
// Right the words from the second; one of them is empty for insert/delete.
type Op struct {
	Kind  OpKind   `json:"kind"`
	Left  []string `json:"left,omitempty"`
	Right []string `json:"right,omitempty"`
}

var opKinds = map[byte]OpKind{
	'e': OpEqual,
	'i': OpInsert,
	'd': OpDelete,
	'r': OpReplace,
}

// Highlight aligns the whitespace-separated words of two lines.
func Highlight(a, b string) []Op {
	wa, wb := strings.Fields(a), strings.Fields(b)
	m := difflib.NewMatcher(wa, wb)

	var ops []Op
	for _, oc := range m.GetOpCodes() {
		op := Op{Kind: opKinds[oc.Tag]}
		if oc.I2 > oc.I1 {
			op.Left = wa[oc.I1:oc.I2]
		}
		if oc.J2 > oc.J1 {
			op.Right = wb[oc.J1:oc.J2]
		}
		ops = append(ops, op)
	}
	return ops
}

// Marker wraps differing words for display. Removed applies to words that
// only the first line has, Added to words only the second line has.
type Marker struct {
	Removed func(string) string
	Added   func(string) string
}

// PlainMarker marks differences with [-word-] and {+word+}.
var PlainMarker = Marker{
	Removed: func(s string) string { return "[-" + s + "-]" },
	Added:   func(s string) string { return "{+" + s + "+}" },
}

// Render turns an alignment back into the two lines with differing spans marked.
func Render(ops []Op, mk Marker) (left, right string) {
	var l, r []string
	for _, op := range ops {
		switch op.Kind {
		case OpEqual:
			l = append(l, op.Left...)
			r = append(r, op.Right...)
		default:
			if len(op.Left) > 0 {
				l = append(l, mk.Removed(strings.Join(op.Left, " ")))
			}
			if len(op.Right) > 0 {
				r = append(r, mk.Added(strings.Join(op.Right, " ")))
			}
		}
	}
	return strings.Join(l, " "), strings.Join(r, " ")
}
