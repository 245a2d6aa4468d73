package push

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Aggregator collects device results from concurrent tasks. Each device is
// written at most once.
type Aggregator struct {
	results *xsync.MapOf[string, Result]
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{results: xsync.NewMapOf[string, Result]()}
}

// Add records r. A second result for the same device is rejected.
func (a *Aggregator) Add(r Result) error {
	if _, loaded := a.results.LoadOrStore(r.Device, r); loaded {
		return fmt.Errorf("duplicate result for device %s", r.Device)
	}
	return nil
}

// Len returns the number of recorded devices.
func (a *Aggregator) Len() int {
	return a.results.Size()
}

// Verdict orders the results by devices. A device without a result is
// reported as failed.
func (a *Aggregator) Verdict(op Operation, devices []string) *Verdict {
	v := &Verdict{Operation: op}
	for _, dev := range devices {
		r, ok := a.results.Load(dev)
		if !ok {
			r = Result{Device: dev, State: StateFailed, Message: "no result recorded"}
		}
		v.Results = append(v.Results, r)
		if r.Success {
			v.Succeeded++
		} else {
			v.Failed++
		}
	}
	v.Success = len(v.Results) > 0 && v.Failed == 0
	return v
}

// Verdict is the outcome of one run across a group.
type Verdict struct {
	Operation Operation `json:"operation"`
	Results   []Result  `json:"results"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Success   bool      `json:"success"`
	DryRun    bool      `json:"dry_run,omitempty"`
}

// Total returns the number of devices.
func (v *Verdict) Total() int { return len(v.Results) }

// Summary is the one-line outcome shown after the results table.
func (v *Verdict) Summary() string {
	if v.Success {
		return fmt.Sprintf("All %d devices completed successfully", v.Total())
	}
	return fmt.Sprintf("%d/%d devices succeeded, %d failed", v.Succeeded, v.Total(), v.Failed)
}

// Result returns the result for dev.
func (v *Verdict) Result(dev string) (Result, bool) {
	for _, r := range v.Results {
		if r.Device == dev {
			return r, true
		}
	}
	return Result{}, false
}
