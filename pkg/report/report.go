// Package report carries operator-facing output. Components hand structured
// results to a Sink; the Console renders them and the Recorder keeps them for
// inspection.
package report

import (
	"github.com/pairpush/pairpush/pkg/diff"
	"github.com/pairpush/pairpush/pkg/preflight"
	"github.com/pairpush/pairpush/pkg/push"
	"github.com/pairpush/pairpush/pkg/setconf"
)

// Level grades a free-form notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

// Document is the validated document as shown before a push.
type Document struct {
	Source   string             `json:"source"`
	Stats    setconf.Statistics `json:"stats"`
	Preview  []string           `json:"preview"`
	More     int                `json:"more"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Sink receives everything the operator sees. Implementations must be safe
// for concurrent use.
type Sink interface {
	Target(group string, devices []string)
	Document(doc Document)
	DryRun(operation string, devices []string)
	Connectivity(results []preflight.Connectivity)
	Pending(results []preflight.Pending)
	Overlap(results []preflight.Overlap, decision preflight.Decision)
	DeviceDone(result push.Result)
	Verdict(verdict *push.Verdict)
	Comparison(result *diff.Result, summary *diff.Summary)
	Notice(level Level, msg string)
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Target(string, []string) {}
func (Discard) Document(Document) {}
func (Discard) DryRun(string, []string) {}
func (Discard) Connectivity([]preflight.Connectivity) {}
func (Discard) Pending([]preflight.Pending) {}
func (Discard) Overlap([]preflight.Overlap, preflight.Decision) {}
func (Discard) DeviceDone(push.Result) {}
func (Discard) Verdict(*push.Verdict) {}
func (Discard) Comparison(*diff.Result, *diff.Summary) {}
func (Discard) Notice(Level, string) {}
