package diff

import (
	"fmt"
	"regexp"

	"github.com/agext/levenshtein"
)

// Strategy selects how near-identical lines are paired.
type Strategy string

const (
	// StrategyRatio pairs lines by edit-distance ratio. This is the default.
	StrategyRatio Strategy = "ratio"
	// StrategyNormalized pairs lines whose shape is equal once device-specific
	// values are replaced by placeholders.
	StrategyNormalized Strategy = "normalized"
)

// DefaultThreshold is the lowest ratio accepted as a similar pair.
const DefaultThreshold = 0.85

// ParseStrategy maps a flag value to a Strategy. Empty selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyRatio:
		return StrategyRatio, nil
	case StrategyNormalized:
		return StrategyNormalized, nil
	}
	return "", fmt.Errorf("unknown similarity strategy %q (valid: ratio, normalized)", s)
}

// An insertion or deletion costs 1 and a substitution 2, so the score is
// (|a|+|b|-d)/(|a|+|b|) over runes.
var ratioParams = levenshtein.NewParams().SubCost(2)

// Ratio returns the similarity of two lines in [0,1]; 1 means identical.
func Ratio(a, b string) float64 {
	return levenshtein.Similarity(a, b, ratioParams)
}

type placeholder struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order; IPv4 before IPv6 so dotted prefixes are not half-consumed.
var placeholders = []placeholder{
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?:/\d{1,2})?\b`), "<IP_ADDRESS>"},
	{regexp.MustCompile(`\b(?:[0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}(?:/\d{1,3})?\b`), "<IPV6_ADDRESS>"},
	{regexp.MustCompile(`(ge|xe|et|ae|irb|lo|fxp|em|vlan)-(\d+/\d+/\d+|\d+)`), "${1}-<INTERFACE_NUMBER>"},
	{regexp.MustCompile(`\b[a-zA-Z0-9]+-[0-9]+\b`), "<HOSTNAME>"},
	{regexp.MustCompile(`\b(?:router|switch)[0-9]+\b`), "<HOSTNAME>"},
	{regexp.MustCompile(`\b(peer-as|as) \d+\b`), "${1} <AS_NUMBER>"},
	{regexp.MustCompile(`\b(vlan-id|vlan) \d+\b`), "${1} <VLAN_ID>"},
}

// Normalize replaces addresses, interface numbers, hostnames, AS numbers and
// VLAN IDs in a line with fixed placeholders.
func Normalize(line string) string {
	for _, p := range placeholders {
		line = p.re.ReplaceAllString(line, p.repl)
	}
	return line
}
