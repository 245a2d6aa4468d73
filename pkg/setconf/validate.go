package setconf

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pairpush/pairpush/pkg/util"
)

// KnownHierarchies are the top-level Junos hierarchies accepted without a warning.
// Matching is by prefix so "interfaces" also covers "interfaces-range" style names.
var KnownHierarchies = []string{
	"interfaces", "protocols", "routing-options", "policy-options",
	"firewall", "security", "system", "chassis", "forwarding-options",
	"class-of-service", "access", "ethernet-switching-options", "vlans",
	"switch-options", "poe", "virtual-chassis", "snmp", "services",
	"applications", "groups", "apply-groups",
}

// Validation is the outcome of a successful validation pass.
type Validation struct {
	Errors   []string
	Warnings []string
}

func knownHierarchy(name string) bool {
	for _, h := range KnownHierarchies {
		if strings.HasPrefix(name, h) {
			return true
		}
	}
	return false
}

func verbList() string {
	verbs := make([]string, 0, len(Verbs))
	for v := range Verbs {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return strings.Join(verbs, ", ")
}

// Validate checks every line of cleaned text and collects all problems.
// Line numbers are 1-based over the non-blank lines given. Hard errors are
// returned as *util.ValidationError carrying every error and warning found.
func Validate(text string) (*Validation, error) {
	v := &util.ValidationBuilder{}
	n := 0

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n++

		if strings.TrimRight(line, " \t") != line {
			v.AddWarningf("line %d: trailing whitespace", n)
		}

		fields := strings.Fields(line)
		verb := strings.ToLower(fields[0])
		if !Verbs[verb] {
			v.AddErrorf("line %d: invalid command '%s' - must start with one of: %s", n, fields[0], verbList())
		}
		if verb == "set" && len(fields) < 3 {
			v.AddErrorf("line %d: set command too short - missing configuration hierarchy or value", n)
		}
		if strings.Count(line, `"`)%2 != 0 {
			v.AddErrorf("line %d: unmatched quotes", n)
		}
		if strings.Count(line, "[") != strings.Count(line, "]") {
			v.AddErrorf("line %d: unmatched brackets", n)
		}

		if Verbs[verb] && len(fields) >= 2 && !knownHierarchy(fields[1]) {
			v.AddWarningf("line %d: unknown configuration hierarchy '%s'", n, fields[1])
		}
		if strings.Contains(line, "..") {
			v.AddWarningf("line %d: suspicious '..' in path", n)
		}
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return &Validation{Warnings: v.Warnings()}, nil
}

// Parse decodes, cleans and validates raw input into a Document.
// An input with no commands left after cleaning is a validation error.
func Parse(raw []byte) (*Document, *Validation, error) {
	text, err := Decode(raw)
	if err != nil {
		return nil, nil, util.NewValidationError(fmt.Sprintf("cannot decode configuration: %v", err))
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil, util.NewValidationError("configuration is empty")
	}

	lines := CleanLines(text)
	if len(lines) == 0 {
		return nil, nil, util.NewValidationError("configuration contains no commands after removing comments and blank lines")
	}

	validation, err := Validate(strings.Join(lines, "\n"))
	if err != nil {
		return nil, nil, err
	}
	return NewDocument(lines, validation.Warnings...), validation, nil
}

// LoadFile reads and parses a configuration file.
func LoadFile(path string) (*Document, *Validation, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, util.NewValidationError(fmt.Sprintf("configuration file not found: %s", path))
		}
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil, util.NewValidationError(fmt.Sprintf("%s is a directory, not a configuration file", path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	util.WithField("file", path).Debugf("read %d bytes", len(raw))
	return Parse(raw)
}
