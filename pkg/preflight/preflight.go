// Package preflight runs the read-only checks that gate a configuration push.
//
// Three stages run in order, each fanned out across the group's devices and
// each a full barrier before the next begins:
//
//  1. connectivity: TCP probe and session handshake; any failure aborts
//  2. pending:      candidate minus committed must be empty; any drift aborts
//  3. overlap:      proposed lines already present vs new; never aborts
//
// One session per device is opened in the connectivity stage and reused by
// the later stages. A stage task is the only user of its device's session.
package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/fanout"
	"github.com/pairpush/pairpush/pkg/setconf"
	"github.com/pairpush/pairpush/pkg/util"
)

// Plan is the input of one preflight run.
type Plan struct {
	Devices []string
	// Proposed is the document to push. Nil skips overlap analysis.
	Proposed setconf.LineSet
	// CheckPending enables the pending-configuration stage.
	CheckPending bool
}

// Connectivity is the connectivity stage outcome for one device.
type Connectivity struct {
	Device    string        `json:"device"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
	Facts     device.Facts  `json:"facts"`
	Err       error         `json:"-"`
}

// Pending is the pending-check outcome for one device.
type Pending struct {
	Device string   `json:"device"`
	Lines  []string `json:"lines,omitempty"`
	Err    error    `json:"-"`
}

// Report collects the outcome of every stage that ran.
type Report struct {
	Connectivity   []Connectivity `json:"connectivity"`
	Pending        []Pending      `json:"pending,omitempty"`
	PendingSkipped bool           `json:"pending_skipped"`
	Overlap        []Overlap      `json:"overlap,omitempty"`
}

// Runner executes preflight stages against real or fake devices.
type Runner struct {
	Dialer      device.Dialer
	Credentials device.Credentials
	Timeout     time.Duration
}

// Run executes the stages for plan. The returned report holds every stage
// that ran, also when an error aborted the run.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Report, error) {
	report := &Report{PendingSkipped: !plan.CheckPending}

	conn, pool, err := r.Connect(ctx, plan.Devices)
	report.Connectivity = conn
	if err != nil {
		return report, err
	}
	defer pool.Close()

	if plan.CheckPending {
		pending, err := r.CheckPending(ctx, pool, plan.Devices)
		report.Pending = pending
		if err != nil {
			return report, err
		}
	}

	if plan.Proposed != nil {
		report.Overlap = r.AnalyzeOverlap(ctx, pool, plan.Devices, plan.Proposed)
	}
	return report, nil
}

// Pool holds one open session per device between stages.
type Pool struct {
	sessions map[string]device.Session
}

// Session returns the session for dev.
func (p *Pool) Session(dev string) device.Session {
	return p.sessions[dev]
}

// Close closes every session.
func (p *Pool) Close() {
	for dev, s := range p.sessions {
		if err := s.Close(); err != nil {
			util.WithDevice(dev).Debugf("closing session: %v", err)
		}
	}
}

type connResult struct {
	conn    Connectivity
	session device.Session
}

// Connect probes each device and opens a session to it. If any device fails,
// every opened session is closed and a *util.ConnectivityError is returned.
func (r *Runner) Connect(ctx context.Context, devices []string) ([]Connectivity, *Pool, error) {
	results := fanout.Run(ctx, devices, len(devices), func(ctx context.Context, dev string) connResult {
		return r.connect(ctx, dev)
	})

	pool := &Pool{sessions: make(map[string]device.Session)}
	out := make([]Connectivity, 0, len(devices))
	var failed []string
	var causes *multierror.Error
	for _, dev := range devices {
		res := results[dev]
		out = append(out, res.conn)
		if res.session != nil {
			pool.sessions[dev] = res.session
		}
		if !res.conn.Reachable {
			failed = append(failed, dev)
			causes = multierror.Append(causes, fmt.Errorf("%s: %w", dev, res.conn.Err))
		}
	}

	if len(failed) > 0 {
		pool.Close()
		return out, nil, &util.ConnectivityError{Devices: failed, Err: causes.ErrorOrNil()}
	}
	return out, pool, nil
}

func (r *Runner) connect(ctx context.Context, dev string) connResult {
	log := util.WithDevice(dev)
	c := Connectivity{Device: dev}
	start := time.Now()

	if err := r.Dialer.Probe(ctx, dev); err != nil {
		log.Debugf("probe failed: %v", err)
		c.Err = err
		return connResult{conn: c}
	}

	s, err := r.Dialer.Open(ctx, dev, r.Credentials, r.Timeout)
	if err != nil {
		log.Debugf("session open failed: %v", err)
		c.Err = err
		return connResult{conn: c}
	}
	facts, err := s.Facts(ctx)
	if err != nil {
		s.Close()
		c.Err = err
		return connResult{conn: c}
	}

	c.Reachable = true
	c.Latency = time.Since(start)
	c.Facts = facts
	log.WithField("latency", c.Latency).Debug("device reachable")
	return connResult{conn: c, session: s}
}

// CheckPending reads candidate and committed configuration on every device.
// Drift on any device yields a *util.PendingStateError; a read failure fails
// closed with the per-device *util.SessionError causes.
func (r *Runner) CheckPending(ctx context.Context, pool *Pool, devices []string) ([]Pending, error) {
	results := fanout.Run(ctx, devices, len(devices), func(ctx context.Context, dev string) Pending {
		return pendingLines(ctx, pool.Session(dev), dev)
	})

	out := make([]Pending, 0, len(devices))
	drift := make(map[string][]string)
	var readErrs *multierror.Error
	for _, dev := range devices {
		p := results[dev]
		out = append(out, p)
		switch {
		case p.Err != nil:
			readErrs = multierror.Append(readErrs, p.Err)
		case len(p.Lines) > 0:
			drift[dev] = p.Lines
		}
	}

	if err := readErrs.ErrorOrNil(); err != nil {
		return out, fmt.Errorf("pending configuration check failed: %w", err)
	}
	if len(drift) > 0 {
		return out, &util.PendingStateError{Pending: drift}
	}
	return out, nil
}

func pendingLines(ctx context.Context, s device.Session, dev string) Pending {
	p := Pending{Device: dev}
	candidate, err := device.ReadLineSet(ctx, s, device.Candidate)
	if err != nil {
		p.Err = util.NewSessionError(dev, "read candidate", err)
		return p
	}
	committed, err := device.ReadLineSet(ctx, s, device.Committed)
	if err != nil {
		p.Err = util.NewSessionError(dev, "read committed", err)
		return p
	}
	p.Lines = candidate.Difference(committed).Sorted()
	if len(p.Lines) > 0 {
		util.WithDevice(dev).Warnf("%d uncommitted lines in candidate", len(p.Lines))
	}
	return p
}
