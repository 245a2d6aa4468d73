// Package junos implements device sessions for Junos over NETCONF/SSH.
package junos

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/util"
)

// Default ports.
const (
	DefaultPort      = 830
	DefaultProbePort = 22
)

// Dialer opens NETCONF sessions over SSH.
type Dialer struct {
	Port         int           // NETCONF port; 0 means DefaultPort
	ProbePort    int           // TCP reachability port; 0 means DefaultProbePort
	ProbeTimeout time.Duration // 0 means 5s
	// KnownHosts is an OpenSSH known_hosts file used to verify host keys.
	// When empty, host keys are not verified.
	KnownHosts string
}

var _ device.Dialer = (*Dialer)(nil)

// Probe checks that the device accepts TCP connections on the probe port.
func (d *Dialer) Probe(ctx context.Context, host string) error {
	port := d.ProbePort
	if port == 0 {
		port = DefaultProbePort
	}
	timeout := d.ProbeTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return device.ProbeTCP(ctx, host, port, timeout)
}

// Open dials SSH, starts the netconf subsystem and completes the handshake.
func (d *Dialer) Open(ctx context.Context, host string, creds device.Credentials, timeout time.Duration) (device.Session, error) {
	if timeout <= 0 {
		timeout = device.DefaultTimeout
	}
	hostKey, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User: creds.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(passwordChallenge(creds.Password)),
		},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	port := d.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nd := net.Dialer{}
	tcp, err := nd.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	// ssh.NewClientConn has no context; bound the handshake with a deadline.
	tcp.SetDeadline(time.Now().Add(timeout))
	c, chans, reqs, err := ssh.NewClientConn(tcp, addr, config)
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("SSH handshake with %s: %w", addr, err)
	}
	tcp.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	rwc, err := openSubsystem(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("netconf subsystem on %s: %w", addr, err)
	}

	s, err := NewSession(ctx, host, rwc, timeout)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Dialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.KnownHosts == "" {
		util.Logger.Debug("host key verification disabled (no known_hosts configured)")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path, err := homedir.Expand(d.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", d.KnownHosts, err)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts %s: %w", path, err)
	}
	return cb, nil
}

// Junos answers password logins with a keyboard-interactive prompt on some releases.
func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
}

// subsystem joins the SSH session pipes into one stream whose Close tears
// down the session and the client.
type subsystem struct {
	io.Reader
	io.WriteCloser
	session *ssh.Session
	client  *ssh.Client
}

func openSubsystem(client *ssh.Client) (*subsystem, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.RequestSubsystem("netconf"); err != nil {
		sess.Close()
		return nil, err
	}
	return &subsystem{Reader: stdout, WriteCloser: stdin, session: sess, client: client}, nil
}

func (s *subsystem) Close() error {
	s.WriteCloser.Close()
	s.session.Close()
	return s.client.Close()
}
