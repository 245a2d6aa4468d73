package junos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Juniper/go-netconf/netconf"
	"github.com/sirupsen/logrus"

	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/util"
)

// Session is a NETCONF session to one Junos device.
type Session struct {
	host    string
	nc      *netconf.Session
	timeout time.Duration
	facts   device.Facts
	log     *logrus.Entry

	// mu serializes RPCs; the netconf session is not safe for concurrent use.
	mu     sync.Mutex
	closed bool
}

var _ device.Session = (*Session)(nil)

// NewSession performs the NETCONF handshake over rwc and collects device facts.
// The session owns rwc from here on.
func NewSession(ctx context.Context, host string, rwc io.ReadWriteCloser, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = device.DefaultTimeout
	}
	t := &netconf.TransportBasicIO{ReadWriteCloser: rwc}

	// The hello exchange has no deadline of its own.
	hctx, cancel := context.WithTimeout(ctx, timeout)
	stop := context.AfterFunc(hctx, func() { t.Close() })
	nc := netconf.NewSession(t)
	interrupted := !stop()
	cancel()
	if interrupted {
		t.Close()
		return nil, ctxErr(hctx, errors.New("NETCONF hello not completed"))
	}
	if len(nc.ServerCapabilities) == 0 {
		t.Close()
		return nil, fmt.Errorf("%s: no NETCONF hello received", host)
	}

	s := &Session{
		host:    host,
		nc:      nc,
		timeout: timeout,
		log:     util.WithDevice(host),
	}

	raw, err := s.rpc(ctx, "<get-software-information/>", true)
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("get-software-information: %w", err)
	}
	s.facts = parseFacts(raw)
	s.log.WithFields(logrus.Fields{
		"session":  nc.SessionID,
		"hostname": s.facts.Hostname,
		"model":    s.facts.Model,
		"version":  s.facts.Version,
	}).Debug("NETCONF session established")
	return s, nil
}

func parseFacts(raw []byte) device.Facts {
	var f device.Facts
	f.Hostname, _ = elementText(raw, "host-name")
	f.Model, _ = elementText(raw, "product-model")
	f.Version, _ = elementText(raw, "junos-version")
	if f.Version == "" {
		// Older releases only report the package list.
		f.Version, _ = elementText(raw, "comment")
	}
	f.Hostname = strings.TrimSpace(f.Hostname)
	f.Model = strings.TrimSpace(f.Model)
	f.Version = strings.TrimSpace(f.Version)
	return f
}

// Capabilities returns the capabilities advertised by the device.
func (s *Session) Capabilities() []string {
	return append([]string(nil), s.nc.ServerCapabilities...)
}

// rpc executes one RPC body and returns the raw reply. The session timeout
// applies unless ctx already carries a deadline. Cancelling ctx closes the
// transport, which is the only way to abort a blocked read.
func (s *Session) rpc(ctx context.Context, body string, ignoreWarnings bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { s.nc.Transport.Close() })
	reply, err := s.nc.Exec(netconf.RawMethod(body))
	if !stop() {
		s.closed = true
		return nil, ctxErr(ctx, err)
	}
	if reply == nil {
		if err == nil {
			err = errors.New("empty rpc-reply")
		}
		return nil, err
	}

	raw := replyBytes(reply)
	warnings, rerr := replyErrors(raw, ignoreWarnings)
	for _, w := range warnings {
		s.log.Warnf("device warning: %s", describe(w))
	}
	return raw, rerr
}

// Facts returns the facts collected during the handshake.
func (s *Session) Facts(context.Context) (device.Facts, error) {
	return s.facts, nil
}

// ReadConfig returns the configuration database in set format.
func (s *Session) ReadConfig(ctx context.Context, db device.Database) (string, error) {
	body := `<get-configuration database="` + string(db) + `" format="set"/>`
	raw, err := s.rpc(ctx, body, true)
	if err != nil {
		return "", fmt.Errorf("get-configuration %s: %w", db, err)
	}
	text, ok := elementText(raw, "configuration-set", "configuration-output", "configuration-text")
	if !ok {
		return "", fmt.Errorf("get-configuration %s: reply carries no configuration", db)
	}
	return text, nil
}

// WithExclusiveLock locks the candidate database, runs fn and always discards
// uncommitted changes and unlocks before returning.
func (s *Session) WithExclusiveLock(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, err := s.rpc(ctx, "<lock-configuration/>", true); err != nil {
		return fmt.Errorf("lock-configuration: %w", err)
	}
	s.log.Debug("configuration locked")

	defer func() {
		// The caller's ctx may already be cancelled; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, derr := s.rpc(rctx, `<load-configuration rollback="0"/>`, true); derr != nil {
			s.log.Warnf("discarding candidate changes: %v", derr)
		}
		if _, uerr := s.rpc(rctx, "<unlock-configuration/>", true); uerr != nil {
			s.log.Warnf("unlock-configuration: %v", uerr)
			if err == nil {
				err = fmt.Errorf("unlock-configuration: %w", uerr)
			}
			return
		}
		s.log.Debug("configuration unlocked")
	}()

	return fn(ctx)
}

// Load merges set-format text into the candidate. Warnings such as
// "statement not found" on delete are logged, not fatal.
func (s *Session) Load(ctx context.Context, text string) error {
	body := `<load-configuration action="set" format="text"><configuration-set>` +
		escape(text) + `</configuration-set></load-configuration>`
	if _, err := s.rpc(ctx, body, true); err != nil {
		return fmt.Errorf("load-configuration: %w", err)
	}
	return nil
}

// CommitCheck validates the candidate. A rejection by the device is returned
// as false together with the device's reasons.
func (s *Session) CommitCheck(ctx context.Context) (bool, error) {
	_, err := s.rpc(ctx, "<commit-configuration><check/></commit-configuration>", true)
	if err != nil {
		return false, fmt.Errorf("commit check: %w", err)
	}
	return true, nil
}

// Commit applies the candidate.
func (s *Session) Commit(ctx context.Context, opts device.CommitOptions) error {
	var b strings.Builder
	b.WriteString("<commit-configuration>")
	if opts.ConfirmMinutes > 0 {
		b.WriteString("<confirmed/><confirm-timeout>")
		b.WriteString(strconv.Itoa(opts.ConfirmMinutes))
		b.WriteString("</confirm-timeout>")
	}
	if opts.Comment != "" {
		b.WriteString("<log>" + escape(opts.Comment) + "</log>")
	}
	b.WriteString("</commit-configuration>")

	if _, err := s.rpc(ctx, b.String(), opts.IgnoreWarnings); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close ends the NETCONF session and closes the transport.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.rpc(ctx, "<close-session/>", true); err != nil {
		s.log.Debugf("close-session: %v", err)
	}
	return s.shutdown()
}

func (s *Session) shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.nc.Close()
}
