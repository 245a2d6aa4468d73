// Package diff compares the configuration line sets of two devices.
//
// Lines are first matched exactly. The remainders on each side are then
// paired greedily with their most similar counterpart so that lines which
// differ only in device-specific values (addresses, hostnames, AS numbers)
// are reported as variations instead of drift. The greedy pass compares every
// remaining line of one side against every remaining line of the other, which
// is O(n*m) and fine for configurations of a few thousand lines.
package diff

import (
	"sort"

	"github.com/pairpush/pairpush/pkg/setconf"
)

// Options controls the similarity pass.
type Options struct {
	Strategy  Strategy
	Threshold float64 // lowest accepted ratio; zero means DefaultThreshold

	// Score overrides Ratio. Used in tests.
	Score func(a, b string) float64
}

// Pair is a line from each side judged equivalent modulo device-specific values.
type Pair struct {
	Left      string  `json:"left"`
	Right     string  `json:"right"`
	Score     float64 `json:"score"`
	Highlight []Op    `json:"highlight"`
}

// Result is the outcome of comparing two line sets.
// Every line of side 1 is in exactly one of Common, Unique1 or Pairs[].Left,
// and symmetrically for side 2.
type Result struct {
	Total1  int      `json:"total1"`
	Total2  int      `json:"total2"`
	Common  []string `json:"common"`
	Unique1 []string `json:"unique1"`
	Unique2 []string `json:"unique2"`
	Pairs   []Pair   `json:"pairs"`

	// Ignored is the number of lines dropped by ignore patterns before
	// comparison, per side. Filled by the caller.
	Ignored1 int `json:"ignored1,omitempty"`
	Ignored2 int `json:"ignored2,omitempty"`
}

// Identical reports whether no line on either side is truly unique.
func (r *Result) Identical() bool {
	return len(r.Unique1) == 0 && len(r.Unique2) == 0
}

// Compare partitions a and b into common lines, similar pairs and truly
// unique lines. Output lists are sorted.
func Compare(a, b setconf.LineSet, opts Options) *Result {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Score == nil {
		opts.Score = Ratio
	}

	common := a.Intersect(b)
	rest1 := a.Difference(common).Sorted()
	rest2 := b.Difference(common).Sorted()

	var pairs []Pair
	switch opts.Strategy {
	case StrategyNormalized:
		pairs = pairByShape(rest1, rest2, opts.Score)
	default:
		pairs = pairByRatio(rest1, rest2, opts)
	}

	matched1 := make(map[string]bool, len(pairs))
	matched2 := make(map[string]bool, len(pairs))
	for i := range pairs {
		matched1[pairs[i].Left] = true
		matched2[pairs[i].Right] = true
		pairs[i].Highlight = Highlight(pairs[i].Left, pairs[i].Right)
	}

	return &Result{
		Total1:  a.Len(),
		Total2:  b.Len(),
		Common:  common.Sorted(),
		Unique1: unmatched(rest1, matched1),
		Unique2: unmatched(rest2, matched2),
		Pairs:   pairs,
	}
}

// pairByRatio takes each left line in order and accepts its best unmatched
// right line when the score is in [threshold, 1). Ties keep the first.
func pairByRatio(left, right []string, opts Options) []Pair {
	used := make([]bool, len(right))
	var pairs []Pair

	for _, l := range left {
		best, bestScore := -1, 0.0
		for j, r := range right {
			if used[j] {
				continue
			}
			s := opts.Score(l, r)
			if s < opts.Threshold || s >= 1.0 {
				continue
			}
			if best < 0 || s > bestScore {
				best, bestScore = j, s
			}
		}
		if best >= 0 {
			used[best] = true
			pairs = append(pairs, Pair{Left: l, Right: right[best], Score: bestScore})
		}
	}
	return pairs
}

// pairByShape matches each left line with the first unmatched right line of
// equal normalized form.
func pairByShape(left, right []string, score func(a, b string) float64) []Pair {
	shapes := make([]string, len(right))
	for j, r := range right {
		shapes[j] = Normalize(r)
	}
	used := make([]bool, len(right))
	var pairs []Pair

	for _, l := range left {
		shape := Normalize(l)
		for j, r := range right {
			if used[j] || shapes[j] != shape {
				continue
			}
			used[j] = true
			pairs = append(pairs, Pair{Left: l, Right: r, Score: score(l, r)})
			break
		}
	}
	return pairs
}

func unmatched(lines []string, matched map[string]bool) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if !matched[l] {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
