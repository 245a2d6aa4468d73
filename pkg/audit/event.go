// Package audit records one event per device outcome of every run.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is the audited outcome of one operation on one device.
type Event struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Group     string        `json:"group"`
	Device    string        `json:"device"`
	Operation string        `json:"operation"`
	Lines     int           `json:"lines"`
	Skipped   int           `json:"skipped,omitempty"`
	Backup    string        `json:"backup,omitempty"`
	Success   bool          `json:"success"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	Group       string
	User        string
	Operation   string
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	// Limit keeps only the most recent N matches.
	Limit int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithRun sets the run the event belongs to
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// WithGroup sets the device group
func (e *Event) WithGroup(group string) *Event {
	e.Group = group
	return e
}

// WithLines records how many lines were pushed and how many were skipped
func (e *Event) WithLines(lines, skipped int) *Event {
	e.Lines = lines
	e.Skipped = skipped
	return e
}

// WithBackup records the backup file written before the change
func (e *Event) WithBackup(path string) *Event {
	e.Backup = path
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess(message string) *Event {
	e.Success = true
	e.Message = message
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks events of runs that never touched a device
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}

func (f Filter) matches(e *Event) bool {
	if f.Device != "" && e.Device != f.Device {
		return false
	}
	if f.Group != "" && e.Group != f.Group {
		return false
	}
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	if f.SuccessOnly && !e.Success {
		return false
	}
	if f.FailureOnly && e.Success {
		return false
	}
	return true
}
