package preflight

import (
	"context"
	"fmt"

	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/fanout"
	"github.com/pairpush/pairpush/pkg/setconf"
	"github.com/pairpush/pairpush/pkg/util"
)

// Status classifies how much of the proposed document a device already has.
type Status string

const (
	StatusFullyPresent     Status = "fully-present"
	StatusPartiallyPresent Status = "partially-present"
	StatusAllNew           Status = "all-new"
	StatusNoChanges        Status = "no-changes"
	StatusUnknown          Status = "unknown"
)

// Overlap is the overlap analysis of one device.
type Overlap struct {
	Device        string   `json:"device"`
	Total         int      `json:"total"`
	ExistingLines []string `json:"existing_lines"`
	NewLines      []string `json:"new_lines"`
	Status        Status   `json:"status"`
	Err           error    `json:"-"`
}

// Existing returns the number of proposed lines already committed.
func (o Overlap) Existing() int { return len(o.ExistingLines) }

// New returns the number of proposed lines not yet committed.
func (o Overlap) New() int { return len(o.NewLines) }

// FullyPresent reports whether every proposed line is already committed.
func (o Overlap) FullyPresent() bool {
	return o.Err == nil && o.Total > 0 && o.Existing() == o.Total
}

func classify(existing, fresh int) Status {
	total := existing + fresh
	switch {
	case total > 0 && existing == total:
		return StatusFullyPresent
	case existing > 0 && fresh > 0:
		return StatusPartiallyPresent
	case total > 0 && fresh == total:
		return StatusAllNew
	}
	return StatusNoChanges
}

// Analyze splits proposed into lines already in current and new lines.
func Analyze(dev string, proposed, current setconf.LineSet) Overlap {
	existing := proposed.Intersect(current).Sorted()
	fresh := proposed.Difference(current).Sorted()
	return Overlap{
		Device:        dev,
		Total:         proposed.Len(),
		ExistingLines: existing,
		NewLines:      fresh,
		Status:        classify(len(existing), len(fresh)),
	}
}

// AnalyzeOverlap compares proposed against each device's committed
// configuration. A read failure is recorded on that device and logged as a
// warning; it never aborts the run.
func (r *Runner) AnalyzeOverlap(ctx context.Context, pool *Pool, devices []string, proposed setconf.LineSet) []Overlap {
	results := fanout.Run(ctx, devices, len(devices), func(ctx context.Context, dev string) Overlap {
		current, err := device.ReadLineSet(ctx, pool.Session(dev), device.Committed)
		if err != nil {
			util.WithDevice(dev).Warnf("could not check existing configuration: %v", err)
			return Overlap{Device: dev, Total: proposed.Len(), Status: StatusUnknown, Err: err}
		}
		return Analyze(dev, proposed, current)
	})

	out := make([]Overlap, 0, len(devices))
	for _, dev := range devices {
		out = append(out, results[dev])
	}
	return out
}

// Mode is what the operation will do with the proposed document.
type Mode int

const (
	// ModeApply persists the document (commit, commit-confirmed).
	ModeApply Mode = iota
	// ModeValidate only validates it (check).
	ModeValidate
	// ModeRemove inverts the document (rollback); present lines are the
	// ones that will change.
	ModeRemove
)

// Decision is the policy outcome of overlap analysis. Overlap never blocks a
// run, so Proceed is always true; the other fields explain what will happen.
type Decision struct {
	Proceed bool
	// NoOp is set when every line is already committed everywhere and the
	// operation applies: the push is an intentional no-op.
	NoOp bool
	// ExpectedOverlap is set when every line is present and the operation
	// only validates.
	ExpectedOverlap bool
	NewLines        int
	ExistingLines   int
	Message         string
}

// Evaluate turns overlap results into a Decision.
func Evaluate(overlap []Overlap, mode Mode) Decision {
	d := Decision{Proceed: true}
	allPresent := len(overlap) > 0
	anyExisting := false
	for _, o := range overlap {
		d.NewLines += o.New()
		d.ExistingLines += o.Existing()
		if !o.FullyPresent() {
			allPresent = false
		}
		if o.Existing() > 0 {
			anyExisting = true
		}
	}

	switch {
	case mode == ModeRemove:
		if d.ExistingLines == 0 {
			d.Message = "none of the lines are present; rollback will not change anything"
		} else {
			d.Message = fmt.Sprintf("%d present lines will be removed, %d are already absent", d.ExistingLines, d.NewLines)
		}
	case allPresent && mode == ModeApply:
		d.NoOp = true
		d.Message = "all configuration lines are already present on all devices; proceeding, no changes will occur"
	case allPresent && mode == ModeValidate:
		d.ExpectedOverlap = true
		d.Message = "all configuration lines are already present; this is expected for validation"
	case anyExisting:
		d.Message = fmt.Sprintf("%d new lines to apply, %d already present", d.NewLines, d.ExistingLines)
	default:
		d.Message = "all configuration lines are new"
	}
	return d
}
