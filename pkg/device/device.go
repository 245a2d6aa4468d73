// Package device defines the session capability used to read and change the
// configuration of one network device.
//
// A Session is bound to one device for the duration of one operation and is
// owned by the task working on that device. It is never shared.
package device

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pairpush/pairpush/pkg/setconf"
)

// Database selects which configuration database to read.
type Database string

const (
	Candidate Database = "candidate"
	Committed Database = "committed"
)

// DefaultTimeout bounds session establishment and each call on a session.
const DefaultTimeout = 60 * time.Second

// DefaultConfirmMinutes is the rollback window used by commit-confirmed.
const DefaultConfirmMinutes = 5

// Credentials authenticate a session.
type Credentials struct {
	User     string
	Password string
}

// Facts describe a device as reported during the handshake.
type Facts struct {
	Hostname string `json:"hostname"`
	Model    string `json:"model"`
	Version  string `json:"version"`
}

// CommitOptions control a commit.
type CommitOptions struct {
	IgnoreWarnings bool
	// ConfirmMinutes > 0 requests a commit that rolls back automatically unless
	// confirmed within that many minutes.
	ConfirmMinutes int
	Comment        string
}

// Session is an open configuration session on one device.
type Session interface {
	// Facts returns the identity collected when the session was opened.
	Facts(ctx context.Context) (Facts, error)
	// ReadConfig returns the configuration in set format.
	ReadConfig(ctx context.Context, db Database) (string, error)
	// WithExclusiveLock runs fn while holding the device configuration lock.
	// The lock is released and uncommitted candidate changes discarded on
	// every exit path.
	WithExclusiveLock(ctx context.Context, fn func(ctx context.Context) error) error
	// Load merges set-format text into the candidate configuration.
	Load(ctx context.Context, text string) error
	// CommitCheck validates the candidate without applying it.
	CommitCheck(ctx context.Context) (bool, error)
	// Commit applies the candidate.
	Commit(ctx context.Context, opts CommitOptions) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	// Probe checks low-level reachability of host.
	Probe(ctx context.Context, host string) error
	// Open establishes a session. timeout bounds the handshake.
	Open(ctx context.Context, host string, creds Credentials, timeout time.Duration) (Session, error)
}

// ReadLines reads a configuration database and returns its non-comment lines.
func ReadLines(ctx context.Context, s Session, db Database) ([]string, error) {
	text, err := s.ReadConfig(ctx, db)
	if err != nil {
		return nil, err
	}
	return setconf.ParseDeviceText(text), nil
}

// ReadLineSet is ReadLines as a set.
func ReadLineSet(ctx context.Context, s Session, db Database) (setconf.LineSet, error) {
	lines, err := ReadLines(ctx, s, db)
	if err != nil {
		return nil, err
	}
	return setconf.NewLineSet(lines...), nil
}

// ProbeTCP dials host:port once and closes the connection.
func ProbeTCP(ctx context.Context, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp probe %s: %w", addr, err)
	}
	return conn.Close()
}
