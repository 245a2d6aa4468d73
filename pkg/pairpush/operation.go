package pairpush

import (
	"fmt"
	"strings"

	"github.com/pairpush/pairpush/pkg/preflight"
	"github.com/pairpush/pairpush/pkg/push"
)

// Operation is what a run does with a group.
type Operation string

const (
	OpCheck           Operation = "check"
	OpCommit          Operation = "commit"
	OpCommitConfirmed Operation = "commit-confirmed"
	OpRollback        Operation = "rollback"
	OpCompare         Operation = "compare"
)

// Operations lists every operation in display order.
var Operations = []Operation{OpCheck, OpCommit, OpCommitConfirmed, OpRollback, OpCompare}

// ParseOperation accepts an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	names := make([]string, len(Operations))
	for i, o := range Operations {
		names[i] = string(o)
	}
	return "", fmt.Errorf("unknown operation %q (valid: %s)", s, strings.Join(names, ", "))
}

// Mutates reports whether the operation changes committed configuration.
func (o Operation) Mutates() bool {
	switch o {
	case OpCommit, OpCommitConfirmed, OpRollback:
		return true
	}
	return false
}

// SkipsPendingCheck reports whether preflight skips the pending-configuration
// stage. Rollback must work on devices whose candidate is dirty; compare only
// reads committed configuration.
func (o Operation) SkipsPendingCheck() bool {
	return o == OpRollback || o == OpCompare
}

func (o Operation) mode() preflight.Mode {
	switch o {
	case OpCheck:
		return preflight.ModeValidate
	case OpRollback:
		return preflight.ModeRemove
	}
	return preflight.ModeApply
}

func (o Operation) push() push.Operation {
	return push.Operation(o)
}
