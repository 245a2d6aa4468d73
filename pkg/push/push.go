// Package push applies a validated configuration document to every device of
// a group, sequentially or in parallel, and aggregates the per-device results.
//
// Each device runs the same state machine:
//
//	Idle -> Loaded -> Checked    (check)
//	               -> Committed  (commit, commit-confirmed, rollback)
//	any  -> Failed
//
// The load and the commit (or commit check) happen inside one exclusive
// configuration lock, released on every exit path. A failure on one device
// never stops the other.
package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/fanout"
	"github.com/pairpush/pairpush/pkg/setconf"
	"github.com/pairpush/pairpush/pkg/util"
)

// DefaultDelay separates devices in sequential mode.
const DefaultDelay = time.Second

// Operation is what the engine does with the document on each device.
type Operation string

const (
	OpCheck           Operation = "check"
	OpCommit          Operation = "commit"
	OpCommitConfirmed Operation = "commit-confirmed"
	OpRollback        Operation = "rollback"
)

// State is the position of one device in the push state machine.
type State string

const (
	StateIdle      State = "idle"
	StateLoaded    State = "loaded"
	StateChecked   State = "checked"
	StateCommitted State = "committed"
	StateFailed    State = "failed"
)

var (
	// ErrCheckRejected is recorded when the device rejects the candidate in a
	// commit check.
	ErrCheckRejected = errors.New("configuration check failed")
	// ErrNothingToRollback is recorded when the document has no set or delete
	// lines to invert.
	ErrNothingToRollback = errors.New("no valid set commands found to convert to delete commands")
)

// Result is the outcome on one device.
type Result struct {
	Device   string        `json:"device"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	State    State         `json:"state"`
	Backup   string        `json:"backup,omitempty"`
	Lines    int           `json:"lines"`
	Skipped  []string      `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

func (r *Result) fail(err error) Result {
	r.Success = false
	r.State = StateFailed
	r.Err = err
	r.Message = err.Error()
	return *r
}

// Plan is one execution across a group.
type Plan struct {
	Devices   []string
	Operation Operation
	Document  *setconf.Document
	Backup    bool
	Parallel  bool
	// Delay separates devices in sequential mode; zero means none.
	Delay          time.Duration
	ConfirmMinutes int
	Comment        string
}

// BackupWriter stores a device's committed configuration and returns where.
type BackupWriter interface {
	Write(device, text string) (string, error)
}

// Engine executes plans.
type Engine struct {
	Dialer      device.Dialer
	Credentials device.Credentials
	Timeout     time.Duration
	Backups     BackupWriter
	// OnResult, if set, is called once per device as soon as it finishes.
	// Calls are serialized.
	OnResult func(Result)

	cbMu sync.Mutex
}

// payload is the text loaded on every device.
type payload struct {
	text    string
	lines   int
	skipped []string
	err     error
}

func buildPayload(plan Plan) payload {
	if plan.Operation != OpRollback {
		return payload{text: plan.Document.String(), lines: plan.Document.Len()}
	}
	converted, skipped := setconf.RollbackLines(plan.Document)
	p := payload{text: strings.Join(converted, "\n"), lines: len(converted), skipped: skipped}
	if len(converted) == 0 {
		p.err = ErrNothingToRollback
	}
	return p
}

// Execute runs plan on every device and returns the verdict. It always
// returns a result for every device.
func (e *Engine) Execute(ctx context.Context, plan Plan) (*Verdict, error) {
	switch plan.Operation {
	case OpCheck, OpCommit, OpCommitConfirmed, OpRollback:
	default:
		return nil, fmt.Errorf("unsupported operation %q", plan.Operation)
	}
	if plan.Document == nil {
		return nil, fmt.Errorf("%s: no configuration document", plan.Operation)
	}
	seen := make(map[string]bool, len(plan.Devices))
	for _, dev := range plan.Devices {
		if seen[dev] {
			return nil, fmt.Errorf("%s: device %s listed more than once", plan.Operation, dev)
		}
		seen[dev] = true
	}

	p := buildPayload(plan)
	if len(p.skipped) > 0 {
		util.WithOperation(string(plan.Operation)).Warnf("%d lines are neither set nor delete and will not be rolled back", len(p.skipped))
	}

	agg := NewAggregator()
	record := func(r Result) {
		if err := agg.Add(r); err != nil {
			util.WithDevice(r.Device).Errorf("%v", err)
			return
		}
		e.notify(r)
	}

	if plan.Parallel {
		fanout.Run(ctx, plan.Devices, len(plan.Devices), func(ctx context.Context, dev string) struct{} {
			record(e.pushDevice(ctx, plan, p, dev))
			return struct{}{}
		})
	} else {
		for i, dev := range plan.Devices {
			record(e.pushDevice(ctx, plan, p, dev))
			if i < len(plan.Devices)-1 && plan.Delay > 0 {
				sleep(ctx, plan.Delay)
			}
		}
	}

	return agg.Verdict(plan.Operation, plan.Devices), nil
}

func (e *Engine) notify(r Result) {
	if e.OnResult == nil {
		return
	}
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.OnResult(r)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (e *Engine) pushDevice(ctx context.Context, plan Plan, p payload, dev string) Result {
	log := util.WithDevice(dev).WithField("operation", plan.Operation)
	start := time.Now()
	r := &Result{Device: dev, State: StateIdle, Lines: p.lines, Skipped: p.skipped}

	finish := func(res Result) Result {
		res.Duration = time.Since(start)
		if res.Success {
			log.Info(res.Message)
		} else {
			log.Warnf("failed: %s", res.Message)
		}
		return res
	}

	if p.err != nil {
		return finish(r.fail(p.err))
	}

	s, err := e.Dialer.Open(ctx, dev, e.Credentials, e.Timeout)
	if err != nil {
		return finish(r.fail(util.NewSessionError(dev, "open", err)))
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Debugf("closing session: %v", err)
		}
	}()

	if plan.Backup {
		path, err := e.backup(ctx, s, dev)
		if err != nil {
			return finish(r.fail(err))
		}
		r.Backup = path
	}

	var inner error
	err = s.WithExclusiveLock(ctx, func(ctx context.Context) error {
		inner = e.apply(ctx, s, plan, p, r)
		return inner
	})
	switch {
	case inner != nil:
		return finish(r.fail(inner))
	case err != nil:
		// The lock could not be taken or released.
		return finish(r.fail(util.NewSessionError(dev, "lock", err)))
	}
	r.Success = true
	return finish(*r)
}

func (e *Engine) backup(ctx context.Context, s device.Session, dev string) (string, error) {
	if e.Backups == nil {
		return "", &util.BackupError{Device: dev, Err: errors.New("no backup directory configured")}
	}
	text, err := s.ReadConfig(ctx, device.Committed)
	if err != nil {
		return "", &util.BackupError{Device: dev, Err: err}
	}
	path, err := e.Backups.Write(dev, text)
	if err != nil {
		var berr *util.BackupError
		if errors.As(err, &berr) {
			return "", err
		}
		return "", &util.BackupError{Device: dev, Err: err}
	}
	return path, nil
}

// apply runs inside the configuration lock and advances r.State.
func (e *Engine) apply(ctx context.Context, s device.Session, plan Plan, p payload, r *Result) error {
	dev := r.Device
	if err := s.Load(ctx, p.text); err != nil {
		return util.NewSessionError(dev, "load", err)
	}
	r.State = StateLoaded

	opts := device.CommitOptions{IgnoreWarnings: true, Comment: plan.Comment}
	switch plan.Operation {
	case OpCheck:
		ok, err := s.CommitCheck(ctx)
		if err != nil {
			return util.NewSessionError(dev, "commit check", err)
		}
		if !ok {
			return ErrCheckRejected
		}
		r.State = StateChecked
		r.Message = "Configuration check passed"

	case OpCommit:
		if err := s.Commit(ctx, opts); err != nil {
			return util.NewSessionError(dev, "commit", err)
		}
		r.State = StateCommitted
		r.Message = "Configuration committed successfully"

	case OpCommitConfirmed:
		opts.ConfirmMinutes = plan.ConfirmMinutes
		if opts.ConfirmMinutes <= 0 {
			opts.ConfirmMinutes = device.DefaultConfirmMinutes
		}
		if err := s.Commit(ctx, opts); err != nil {
			return util.NewSessionError(dev, "commit confirmed", err)
		}
		r.State = StateCommitted
		r.Message = fmt.Sprintf("Configuration committed with confirmation - confirm within %d minutes or it rolls back", opts.ConfirmMinutes)

	case OpRollback:
		if err := s.Commit(ctx, opts); err != nil {
			return util.NewSessionError(dev, "commit", err)
		}
		r.State = StateCommitted
		r.Message = fmt.Sprintf("Configuration rollback completed - deleted %d configuration lines", p.lines)
	}
	return nil
}
