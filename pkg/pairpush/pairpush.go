// Package pairpush runs configuration operations against a two-device group:
// validate the document, gate on preflight checks, push to both devices, and
// report one verdict. It also compares the committed configuration of the
// two devices.
package pairpush

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/pairpush/pairpush/pkg/audit"
	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/diff"
	"github.com/pairpush/pairpush/pkg/fanout"
	"github.com/pairpush/pairpush/pkg/inventory"
	"github.com/pairpush/pairpush/pkg/preflight"
	"github.com/pairpush/pairpush/pkg/push"
	"github.com/pairpush/pairpush/pkg/report"
	"github.com/pairpush/pairpush/pkg/runlock"
	"github.com/pairpush/pairpush/pkg/setconf"
	"github.com/pairpush/pairpush/pkg/util"
	"github.com/pairpush/pairpush/pkg/version"
)

// Request describes one run.
type Request struct {
	Group     string
	Operation Operation

	// ConfigFile is read when Config is nil.
	ConfigFile string
	Config     []byte

	DryRun   bool
	Parallel bool
	Backup   bool
	// Delay separates devices in sequential mode. Zero means
	// push.DefaultDelay; negative means no delay.
	Delay          time.Duration
	ConfirmMinutes int

	// Compare only.
	Strategy  diff.Strategy
	Threshold float64
}

// Tool wires the components of a run together.
type Tool struct {
	Store   *inventory.Store
	Dialer  device.Dialer
	Sink    report.Sink
	Backups push.BackupWriter
	Audit   audit.Logger
	Locker  runlock.Locker
	Timeout time.Duration
	User    string
}

func (t *Tool) sink() report.Sink {
	if t.Sink == nil {
		return report.Discard{}
	}
	return t.Sink
}

func (t *Tool) locker() runlock.Locker {
	if t.Locker == nil {
		return runlock.Nop{}
	}
	return t.Locker
}

func (t *Tool) timeout() time.Duration {
	if t.Timeout <= 0 {
		return device.DefaultTimeout
	}
	return t.Timeout
}

func (t *Tool) runner() *preflight.Runner {
	return &preflight.Runner{
		Dialer:      t.Dialer,
		Credentials: t.Store.DeviceCredentials(),
		Timeout:     t.timeout(),
	}
}

func (t *Tool) resolve(name string) (*inventory.Group, error) {
	if t.Store == nil {
		return nil, fmt.Errorf("%w: no configuration store loaded", util.ErrInvalidConfig)
	}
	g, err := t.Store.ResolveGroup(name)
	if err != nil {
		return nil, err
	}
	t.sink().Target(g.Name, g.Addresses())
	return g, nil
}

// loadDocument reads and validates the request's document.
func (t *Tool) loadDocument(req Request) (*setconf.Document, error) {
	var (
		doc    *setconf.Document
		v      *setconf.Validation
		err    error
		source = req.ConfigFile
	)
	if req.Config != nil {
		source = "<input>"
		doc, v, err = setconf.Parse(req.Config)
	} else {
		doc, v, err = setconf.LoadFile(req.ConfigFile)
	}
	if err != nil {
		var verr *util.ValidationError
		if errors.As(err, &verr) {
			for _, w := range verr.Warnings {
				t.sink().Notice(report.LevelWarning, w)
			}
		}
		return nil, err
	}

	preview, more := setconf.Preview(doc, setconf.DefaultPreviewLines)
	var warnings []string
	if v != nil {
		warnings = v.Warnings
	}
	t.sink().Document(report.Document{
		Source:   source,
		Stats:    setconf.Stats(doc),
		Preview:  preview,
		More:     more,
		Warnings: warnings,
	})
	return doc, nil
}

// Execute runs a check, commit, commit-confirmed or rollback on req.Group.
//
// Run-level failures (bad group, invalid document, group locked, preflight
// abort) are returned as errors before any device is changed. Device-level
// failures are reported in the verdict; the verdict alone decides success.
func (t *Tool) Execute(ctx context.Context, req Request) (*push.Verdict, error) {
	op, err := ParseOperation(string(req.Operation))
	if err != nil {
		return nil, err
	}
	if op == OpCompare {
		return nil, errors.New("compare is not a push operation; use Compare")
	}
	req.Operation = op

	g, err := t.resolve(req.Group)
	if err != nil {
		return nil, err
	}
	doc, err := t.loadDocument(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := util.WithGroup(g.Name).WithField("run", runID).WithField("operation", req.Operation)
	devices := g.Addresses()

	if req.DryRun {
		t.sink().DryRun(string(req.Operation), devices)
		v := dryRunVerdict(req.Operation, devices, doc)
		t.auditVerdict(runID, g.Name, v)
		t.sink().Verdict(v)
		return v, nil
	}

	release, err := t.locker().Acquire(ctx, g.Name, runlock.Holder(runID))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(); err != nil {
			log.Warnf("releasing run lock: %v", err)
		}
	}()

	log.Info("starting preflight")
	rep, err := t.runner().Run(ctx, preflight.Plan{
		Devices:      devices,
		Proposed:     doc.LineSet(),
		CheckPending: !req.Operation.SkipsPendingCheck(),
	})
	t.reportPreflight(rep)
	if err != nil {
		t.sink().Notice(report.LevelError, err.Error())
		t.auditAbort(runID, g.Name, req.Operation, devices, err)
		return nil, err
	}
	decision := preflight.Evaluate(rep.Overlap, req.Operation.mode())
	t.sink().Overlap(rep.Overlap, decision)

	delay := req.Delay
	switch {
	case delay == 0:
		delay = push.DefaultDelay
	case delay < 0:
		delay = 0
	}
	engine := &push.Engine{
		Dialer:      t.Dialer,
		Credentials: t.Store.DeviceCredentials(),
		Timeout:     t.timeout(),
		Backups:     t.Backups,
		OnResult:    t.sink().DeviceDone,
	}
	v, err := engine.Execute(ctx, push.Plan{
		Devices:        devices,
		Operation:      req.Operation.push(),
		Document:       doc,
		Backup:         req.Backup,
		Parallel:       req.Parallel,
		Delay:          delay,
		ConfirmMinutes: req.ConfirmMinutes,
		Comment:        version.Comment(string(req.Operation)),
	})
	if err != nil {
		return nil, err
	}

	t.auditVerdict(runID, g.Name, v)
	t.sink().Verdict(v)
	log.WithField("success", v.Success).Info(v.Summary())
	return v, nil
}

func (t *Tool) reportPreflight(rep *preflight.Report) {
	if rep == nil {
		return
	}
	if len(rep.Connectivity) > 0 {
		t.sink().Connectivity(rep.Connectivity)
	}
	if rep.Pending != nil {
		t.sink().Pending(rep.Pending)
	}
}

func dryRunVerdict(op Operation, devices []string, doc *setconf.Document) *push.Verdict {
	agg := push.NewAggregator()
	for _, dev := range devices {
		agg.Add(push.Result{
			Device:  dev,
			Success: true,
			State:   push.StateIdle,
			Lines:   doc.Len(),
			Message: fmt.Sprintf("dry run: %s of %d lines would be performed", op, doc.Len()),
		})
	}
	v := agg.Verdict(op.push(), devices)
	v.DryRun = true
	return v
}

func (t *Tool) auditVerdict(runID, group string, v *push.Verdict) {
	if t.Audit == nil {
		return
	}
	for _, r := range v.Results {
		e := audit.NewEvent(t.User, r.Device, string(v.Operation)).
			WithRun(runID).
			WithGroup(group).
			WithLines(r.Lines, len(r.Skipped)).
			WithBackup(r.Backup).
			WithDuration(r.Duration).
			WithDryRun(v.DryRun)
		if r.Success {
			e.WithSuccess(r.Message)
		} else {
			e.Message = r.Message
			e.WithError(r.Err)
		}
		t.writeAudit(e)
	}
}

func (t *Tool) auditAbort(runID, group string, op Operation, devices []string, err error) {
	if t.Audit == nil {
		return
	}
	for _, dev := range devices {
		t.writeAudit(audit.NewEvent(t.User, dev, string(op)).WithRun(runID).WithGroup(group).WithError(err))
	}
}

func (t *Tool) writeAudit(e *audit.Event) {
	if err := t.Audit.Log(e); err != nil {
		util.WithDevice(e.Device).Warnf("writing audit event: %v", err)
	}
}

// Compare reads the committed configuration of both devices of req.Group and
// diffs them. A dry run returns a nil result without contacting the devices.
func (t *Tool) Compare(ctx context.Context, req Request) (*diff.Result, error) {
	g, err := t.resolve(req.Group)
	if err != nil {
		return nil, err
	}
	devices := g.Addresses()

	if req.DryRun {
		t.sink().DryRun(string(OpCompare), devices)
		return nil, nil
	}

	runner := t.runner()
	conn, pool, err := runner.Connect(ctx, devices)
	t.sink().Connectivity(conn)
	if err != nil {
		t.sink().Notice(report.LevelError, err.Error())
		return nil, err
	}
	defer pool.Close()

	type fetched struct {
		lines []string
		err   error
	}
	results := fanout.Run(ctx, devices, len(devices), func(ctx context.Context, dev string) fetched {
		lines, err := device.ReadLines(ctx, pool.Session(dev), device.Committed)
		if err != nil {
			return fetched{err: util.NewSessionError(dev, "read committed", err)}
		}
		return fetched{lines: lines}
	})

	var errs *multierror.Error
	for _, dev := range devices {
		if err := results[dev].err; err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		t.sink().Notice(report.LevelError, err.Error())
		return nil, fmt.Errorf("fetching configurations: %w", err)
	}

	left, ignored1 := diff.Filter(results[devices[0]].lines, t.Store.IgnorePatterns)
	right, ignored2 := diff.Filter(results[devices[1]].lines, t.Store.IgnorePatterns)
	if ignored1+ignored2 > 0 {
		t.sink().Notice(report.LevelInfo, fmt.Sprintf("ignored %d lines on %s and %d on %s per ignore patterns",
			ignored1, devices[0], ignored2, devices[1]))
	}

	res := diff.Compare(setconf.NewLineSet(left...), setconf.NewLineSet(right...), diff.Options{
		Strategy:  req.Strategy,
		Threshold: req.Threshold,
	})
	res.Ignored1, res.Ignored2 = ignored1, ignored2

	t.sink().Comparison(res, res.Summarize(devices[0], devices[1], diff.DefaultMaxUnique, diff.DefaultMaxPairs))
	util.WithGroup(g.Name).Infof("compared: %d common, %d similar, %d/%d unique",
		len(res.Common), len(res.Pairs), len(res.Unique1), len(res.Unique2))
	return res, nil
}
