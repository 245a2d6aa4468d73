package report

import (
	"sync"

	"github.com/pairpush/pairpush/pkg/diff"
	"github.com/pairpush/pairpush/pkg/preflight"
	"github.com/pairpush/pairpush/pkg/push"
)

// Recorder keeps every call for later inspection.
type Recorder struct {
	mu sync.Mutex

	Events       []string
	Group        string
	Devices      []string
	Doc          *Document
	DryRuns      []string
	Conn         []preflight.Connectivity
	PendingState []preflight.Pending
	Overlaps     []preflight.Overlap
	Decision     *preflight.Decision
	Done         []push.Result
	Final        *push.Verdict
	Diff         *diff.Result
	Summary      *diff.Summary
	Notices      []string
}

func (r *Recorder) event(name string) {
	r.Events = append(r.Events, name)
}

func (r *Recorder) Target(group string, devices []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("target")
	r.Group, r.Devices = group, devices
}

func (r *Recorder) Document(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("document")
	r.Doc = &doc
}

func (r *Recorder) DryRun(operation string, devices []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("dry-run")
	r.DryRuns = append(r.DryRuns, operation)
}

func (r *Recorder) Connectivity(results []preflight.Connectivity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("connectivity")
	r.Conn = results
}

func (r *Recorder) Pending(results []preflight.Pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("pending")
	r.PendingState = results
}

func (r *Recorder) Overlap(results []preflight.Overlap, decision preflight.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("overlap")
	r.Overlaps, r.Decision = results, &decision
}

func (r *Recorder) DeviceDone(result push.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("device:" + result.Device)
	r.Done = append(r.Done, result)
}

func (r *Recorder) Verdict(v *push.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("verdict")
	r.Final = v
}

func (r *Recorder) Comparison(res *diff.Result, s *diff.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("comparison")
	r.Diff, r.Summary = res, s
}

func (r *Recorder) Notice(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.event("notice")
	r.Notices = append(r.Notices, level.String()+": "+msg)
}

// Seen returns a copy of the event names in call order.
func (r *Recorder) Seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Events...)
}
