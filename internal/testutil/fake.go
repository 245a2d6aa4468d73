// Package testutil provides test helpers: an in-memory device fake for unit
// tests and Redis helpers for integration tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pairpush/pairpush/pkg/device"
)

// Stages that can be made to fail on a FakeDevice.
const (
	StageOpen          = "open"
	StageFacts         = "facts"
	StageReadCandidate = "read:candidate"
	StageReadCommitted = "read:committed"
	StageLock          = "lock"
	StageLoad          = "load"
	StageCheck         = "check"
	StageCommit        = "commit"
)

// ErrInjected is the default failure for a stage listed in FakeDevice.Fail.
var ErrInjected = errors.New("injected failure")

// FakeDevice is an in-memory Junos-like device with a committed database and
// pending candidate lines.
type FakeDevice struct {
	Address string
	Facts   device.Facts

	// Unreachable makes Probe fail.
	Unreachable bool
	// Fail maps a stage to the error it returns.
	Fail map[string]error
	// RejectCheck makes CommitCheck report false without an error.
	RejectCheck bool
	// Delay is added to every session call.
	Delay time.Duration

	mu        sync.Mutex
	committed []string
	pending   []string
	calls     []string
	locked    bool
	loads     []string
	commits   []device.CommitOptions
	open      int
}

// NewFakeDevice returns a reachable device whose committed configuration is lines.
func NewFakeDevice(address string, lines ...string) *FakeDevice {
	return &FakeDevice{
		Address:   address,
		Facts:     device.Facts{Hostname: "fake-" + address, Model: "vsrx", Version: "21.2R3"},
		Fail:      map[string]error{},
		committed: append([]string(nil), lines...),
	}
}

// SetPending adds uncommitted lines to the device's candidate database.
func (d *FakeDevice) SetPending(lines ...string) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append([]string(nil), lines...)
	return d
}

// FailAt injects ErrInjected at stage.
func (d *FakeDevice) FailAt(stage string) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Fail[stage] = fmt.Errorf("%s: %w", stage, ErrInjected)
	return d
}

// Committed returns the committed configuration lines.
func (d *FakeDevice) Committed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.committed...)
}

// Calls returns the recorded call names in order.
func (d *FakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Called reports whether name appears in the call log.
func (d *FakeDevice) Called(name string) bool {
	for _, c := range d.Calls() {
		if c == name {
			return true
		}
	}
	return false
}

// Loads returns every text passed to Load.
func (d *FakeDevice) Loads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.loads...)
}

// Commits returns the options of every successful commit.
func (d *FakeDevice) Commits() []device.CommitOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.CommitOptions(nil), d.commits...)
}

// Locked reports whether a configuration lock is held.
func (d *FakeDevice) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// OpenSessions returns the number of sessions not yet closed.
func (d *FakeDevice) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *FakeDevice) record(ctx context.Context, name string) error {
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	return d.Fail[name]
}

func (d *FakeDevice) candidate() []string {
	out := append([]string(nil), d.committed...)
	return append(out, d.pending...)
}

// FakeDialer serves FakeDevices by address.
type FakeDialer struct {
	mu      sync.Mutex
	devices map[string]*FakeDevice
}

var _ device.Dialer = (*FakeDialer)(nil)

// NewFakeDialer returns a dialer for devs.
func NewFakeDialer(devs ...*FakeDevice) *FakeDialer {
	fd := &FakeDialer{devices: make(map[string]*FakeDevice)}
	for _, d := range devs {
		fd.devices[d.Address] = d
	}
	return fd
}

// Device returns the fake registered for address.
func (f *FakeDialer) Device(address string) *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[address]
}

func (f *FakeDialer) Probe(ctx context.Context, host string) error {
	d := f.Device(host)
	if d == nil {
		return fmt.Errorf("no route to host %s", host)
	}
	if err := d.record(ctx, "probe"); err != nil {
		return err
	}
	if d.Unreachable {
		return fmt.Errorf("tcp probe %s:22: connection refused", host)
	}
	return nil
}

func (f *FakeDialer) Open(ctx context.Context, host string, _ device.Credentials, _ time.Duration) (device.Session, error) {
	d := f.Device(host)
	if d == nil {
		return nil, fmt.Errorf("no route to host %s", host)
	}
	if err := d.record(ctx, StageOpen); err != nil {
		return nil, err
	}
	if d.Unreachable {
		return nil, fmt.Errorf("dial %s: connection refused", host)
	}
	d.mu.Lock()
	d.open++
	d.mu.Unlock()
	return &fakeSession{dev: d}, nil
}

// fakeSession edits a private working copy of the candidate that is written
// to the device on commit and dropped when the lock scope ends.
type fakeSession struct {
	dev     *FakeDevice
	working []string
	closed  bool
}

func (s *fakeSession) Facts(ctx context.Context) (device.Facts, error) {
	if err := s.dev.record(ctx, StageFacts); err != nil {
		return device.Facts{}, err
	}
	return s.dev.Facts, nil
}

func (s *fakeSession) ReadConfig(ctx context.Context, db device.Database) (string, error) {
	if err := s.dev.record(ctx, "read:"+string(db)); err != nil {
		return "", err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	lines := s.dev.committed
	if db == device.Candidate {
		lines = s.dev.candidate()
	}
	return "## Last commit: 2024-01-01 00:00:00 UTC\n" + strings.Join(lines, "\n") + "\n", nil
}

func (s *fakeSession) WithExclusiveLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.dev.record(ctx, StageLock); err != nil {
		return err
	}
	s.dev.mu.Lock()
	if s.dev.locked {
		s.dev.mu.Unlock()
		return errors.New("configuration database locked by another session")
	}
	s.dev.locked = true
	s.working = s.dev.candidate()
	s.dev.mu.Unlock()

	defer func() {
		s.dev.mu.Lock()
		s.dev.locked = false
		s.working = nil
		s.dev.calls = append(s.dev.calls, "unlock")
		s.dev.mu.Unlock()
	}()
	return fn(ctx)
}

func (s *fakeSession) Load(ctx context.Context, text string) error {
	if err := s.dev.record(ctx, StageLoad); err != nil {
		return err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if !s.dev.locked {
		return errors.New("load outside lock")
	}
	s.dev.loads = append(s.dev.loads, text)
	for _, line := range strings.Split(text, "\n") {
		s.working = apply(s.working, strings.TrimSpace(line))
	}
	return nil
}

// apply merges one set/delete line into lines.
func apply(lines []string, line string) []string {
	switch {
	case strings.HasPrefix(line, "set "):
		for _, l := range lines {
			if l == line {
				return lines
			}
		}
		return append(lines, line)
	case strings.HasPrefix(line, "delete "):
		path := "set " + strings.TrimPrefix(line, "delete ")
		out := lines[:0:0]
		for _, l := range lines {
			if l == path || strings.HasPrefix(l, path+" ") {
				continue
			}
			out = append(out, l)
		}
		return out
	}
	return lines
}

func (s *fakeSession) CommitCheck(ctx context.Context) (bool, error) {
	if err := s.dev.record(ctx, StageCheck); err != nil {
		return false, err
	}
	return !s.dev.RejectCheck, nil
}

func (s *fakeSession) Commit(ctx context.Context, opts device.CommitOptions) error {
	if err := s.dev.record(ctx, StageCommit); err != nil {
		return err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if !s.dev.locked {
		return errors.New("commit outside lock")
	}
	s.dev.committed = append([]string(nil), s.working...)
	s.dev.pending = nil
	s.dev.commits = append(s.dev.commits, opts)
	return nil
}

func (s *fakeSession) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.dev.open--
	s.dev.calls = append(s.dev.calls, "close")
	return nil
}

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
