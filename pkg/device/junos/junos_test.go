package junos

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pairpush/pairpush/pkg/device"
)

const serverHello = `<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
<capabilities><capability>urn:ietf:params:netconf:base:1.0</capability></capabilities>
<session-id>4242</session-id></hello>`

const softwareInfo = `<software-information>
<host-name>leaf-1</host-name><product-model>qfx5120-48y</product-model><junos-version>21.2R3-S4</junos-version>
</software-information>`

// fakeDevice answers NETCONF requests on a loopback TCP connection.
type fakeDevice struct {
	t       *testing.T
	conn    net.Conn
	r       *bufio.Reader
	handler func(body string) string

	mu   sync.Mutex
	rpcs []string
}

var messageID = regexp.MustCompile(`message-id="([^"]+)"`)
var rpcBody = regexp.MustCompile(`(?s)<rpc [^>]*>(.*)</rpc>`)

// loopback returns both ends of a TCP connection on 127.0.0.1.
func loopback(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() { server.Close() })
	return client, server
}

func startFake(t *testing.T, handler func(body string) string) (*fakeDevice, net.Conn) {
	client, server := loopback(t)
	f := &fakeDevice{t: t, conn: server, r: bufio.NewReader(server), handler: handler}
	go f.serve()
	return f, client
}

func (f *fakeDevice) write(msg string) error {
	_, err := io.WriteString(f.conn, msg+delimiter)
	return err
}

func (f *fakeDevice) read() (string, error) {
	var b strings.Builder
	for {
		chunk, err := f.r.ReadString('>')
		b.WriteString(chunk)
		if err != nil {
			return "", err
		}
		if strings.HasSuffix(b.String(), delimiter) {
			return strings.TrimSpace(strings.TrimSuffix(b.String(), delimiter)), nil
		}
	}
}

func (f *fakeDevice) serve() {
	if err := f.write(serverHello); err != nil {
		return
	}
	if _, err := f.read(); err != nil {
		return
	}
	for {
		msg, err := f.read()
		if err != nil {
			return
		}
		id := messageID.FindStringSubmatch(msg)
		body := rpcBody.FindStringSubmatch(msg)
		if id == nil || body == nil {
			f.t.Errorf("malformed rpc: %s", msg)
			return
		}
		f.mu.Lock()
		f.rpcs = append(f.rpcs, body[1])
		f.mu.Unlock()

		var inner string
		switch {
		case strings.HasPrefix(body[1], "<get-software-information"):
			inner = softwareInfo
		case strings.HasPrefix(body[1], "<close-session"):
			inner = "<ok/>"
		default:
			inner = f.handler(body[1])
		}
		reply := `<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="` + id[1] + `">` + inner + `</rpc-reply>`
		if err := f.write(reply); err != nil {
			return
		}
	}
}

func (f *fakeDevice) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rpcs...)
}

func okHandler(string) string { return "<ok/>" }

func openFake(t *testing.T, handler func(string) string) (*Session, *fakeDevice) {
	t.Helper()
	f, client := startFake(t, handler)
	s, err := NewSession(context.Background(), "10.0.0.1", client, 5*time.Second)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, f
}

func TestNewSessionFacts(t *testing.T) {
	s, _ := openFake(t, okHandler)
	facts, err := s.Facts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := device.Facts{Hostname: "leaf-1", Model: "qfx5120-48y", Version: "21.2R3-S4"}
	if facts != want {
		t.Errorf("Facts() = %+v, want %+v", facts, want)
	}
	if caps := s.Capabilities(); len(caps) != 1 {
		t.Errorf("Capabilities() = %v", caps)
	}
}

func TestReadConfig(t *testing.T) {
	s, f := openFake(t, func(body string) string {
		if strings.Contains(body, `database="candidate"`) {
			return "<configuration-set>set system host-name leaf-1\nset system ntp server 1.1.1.1\n</configuration-set>"
		}
		return "<configuration-set>\nset system host-name leaf-1\n</configuration-set>"
	})

	text, err := s.ReadConfig(context.Background(), device.Candidate)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if !strings.Contains(text, "ntp server 1.1.1.1") {
		t.Errorf("candidate = %q", text)
	}

	lines, err := device.ReadLines(context.Background(), s, device.Committed)
	if err != nil || len(lines) != 1 {
		t.Errorf("committed lines = %v, %v", lines, err)
	}

	calls := f.calls()
	if !strings.Contains(calls[len(calls)-1], `format="set"`) {
		t.Errorf("get-configuration should request set format: %s", calls[len(calls)-1])
	}
}

func TestRPCErrorSeverity(t *testing.T) {
	errorReply := `<load-configuration-results><rpc-error>
<error-type>protocol</error-type><error-tag>operation-failed</error-tag>
<error-severity>error</error-severity><error-message>syntax error</error-message>
</rpc-error><ok/></load-configuration-results>`
	warningReply := `<commit-results><rpc-error>
<error-severity>warning</error-severity><error-message>statement not found</error-message>
</rpc-error><routing-engine><name>re0</name><commit-success/></routing-engine></commit-results>`

	t.Run("error fails the call", func(t *testing.T) {
		s, _ := openFake(t, func(string) string { return errorReply })
		err := s.Load(context.Background(), "set system foo")
		var rpcErrs RPCErrors
		if !errors.As(err, &rpcErrs) || !strings.Contains(err.Error(), "syntax error") {
			t.Errorf("Load() error = %v, want rpc error", err)
		}
	})

	t.Run("warning ignored when requested", func(t *testing.T) {
		s, _ := openFake(t, func(string) string { return warningReply })
		if err := s.Commit(context.Background(), device.CommitOptions{IgnoreWarnings: true}); err != nil {
			t.Errorf("Commit(ignore warnings) error = %v", err)
		}
	})

	t.Run("warning fails strict commit", func(t *testing.T) {
		s, _ := openFake(t, func(string) string { return warningReply })
		if err := s.Commit(context.Background(), device.CommitOptions{}); err == nil {
			t.Error("Commit() should fail on warnings when not ignoring them")
		}
	})
}

func TestCommitCheck(t *testing.T) {
	reject := true
	s, _ := openFake(t, func(body string) string {
		if reject {
			return `<commit-results><rpc-error><error-severity>error</error-severity><error-message>Missing mandatory statement</error-message></rpc-error></commit-results>`
		}
		return "<commit-check-success/>"
	})

	ok, err := s.CommitCheck(context.Background())
	if ok || err == nil || !strings.Contains(err.Error(), "Missing mandatory") {
		t.Errorf("CommitCheck() = %v, %v; want rejection", ok, err)
	}

	reject = false
	if ok, err := s.CommitCheck(context.Background()); !ok || err != nil {
		t.Errorf("CommitCheck() = %v, %v; want success", ok, err)
	}
}

func TestCommitConfirmedBody(t *testing.T) {
	s, f := openFake(t, okHandler)
	err := s.Commit(context.Background(), device.CommitOptions{IgnoreWarnings: true, ConfirmMinutes: 5, Comment: "pairpush <run>"})
	if err != nil {
		t.Fatal(err)
	}
	calls := f.calls()
	last := calls[len(calls)-1]
	for _, want := range []string{"<confirmed/>", "<confirm-timeout>5</confirm-timeout>", "<log>pairpush &lt;run&gt;</log>"} {
		if !strings.Contains(last, want) {
			t.Errorf("commit body %q missing %q", last, want)
		}
	}
}

func TestWithExclusiveLockReleasesOnError(t *testing.T) {
	s, f := openFake(t, okHandler)
	boom := errors.New("load failed")

	err := s.WithExclusiveLock(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("WithExclusiveLock() error = %v, want %v", err, boom)
	}

	calls := f.calls()
	var seq []string
	for _, c := range calls[1:] { // skip get-software-information
		seq = append(seq, strings.SplitN(strings.TrimPrefix(c, "<"), " ", 2)[0])
	}
	want := []string{"lock-configuration/>", "load-configuration", "unlock-configuration/>"}
	if strings.Join(seq, ",") != strings.Join(want, ",") {
		t.Errorf("rpc sequence = %v, want %v", seq, want)
	}
	if !strings.Contains(calls[2], `rollback="0"`) {
		t.Errorf("lock exit should discard candidate: %s", calls[2])
	}
}

func TestLoadEscapesText(t *testing.T) {
	s, f := openFake(t, okHandler)
	if err := s.Load(context.Background(), `set system login message "a & <b>"`); err != nil {
		t.Fatal(err)
	}
	calls := f.calls()
	last := calls[len(calls)-1]
	if !strings.Contains(last, `action="set"`) || !strings.Contains(last, "a &amp; &lt;b&gt;") {
		t.Errorf("load body = %s", last)
	}
}

func TestCallCancelledContext(t *testing.T) {
	block := make(chan struct{})
	s, _ := openFake(t, func(string) string {
		<-block
		return "<ok/>"
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.ReadConfig(ctx, device.Committed)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadConfig() error = %v, want deadline exceeded", err)
	}
}

func TestNewSessionHandshakeFailure(t *testing.T) {
	tests := []struct {
		name    string
		server  func(net.Conn)
		timeout time.Duration
		wantCtx bool
	}{
		{"connection closed", func(c net.Conn) { c.Close() }, 5 * time.Second, false},
		{"hello never sent", func(net.Conn) {}, 100 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := loopback(t)
			tt.server(server)

			_, err := NewSession(context.Background(), "10.0.0.1", client, tt.timeout)
			if err == nil {
				t.Fatal("NewSession() should fail without a server hello")
			}
			if got := errors.Is(err, context.DeadlineExceeded); got != tt.wantCtx {
				t.Errorf("NewSession() error = %v, deadline exceeded = %v, want %v", err, got, tt.wantCtx)
			}
		})
	}
}

func TestReplyErrorsNested(t *testing.T) {
	raw := []byte(`<rpc-reply><rpc-error><error-severity>warning</error-severity><error-message>top</error-message></rpc-error>
<load-configuration-results><rpc-error><error-severity>error</error-severity><error-tag>invalid-value</error-tag>
<error-path>[edit system]</error-path></rpc-error></load-configuration-results></rpc-reply>`)

	tests := []struct {
		ignoreWarnings bool
		wantErrs       int
	}{
		{true, 1},
		{false, 2},
	}
	for _, tt := range tests {
		warnings, err := replyErrors(raw, tt.ignoreWarnings)
		var rpcErrs RPCErrors
		if !errors.As(err, &rpcErrs) || len(rpcErrs) != tt.wantErrs {
			t.Fatalf("replyErrors(ignore=%v) = %v, want %d errors", tt.ignoreWarnings, err, tt.wantErrs)
		}
		if len(warnings) != 1 || describe(warnings[0]) != "top" {
			t.Errorf("warnings = %+v", warnings)
		}
		if !strings.Contains(err.Error(), "invalid-value (at [edit system])") {
			t.Errorf("error = %q", err)
		}
	}
}

func TestParseFactsMultiRE(t *testing.T) {
	raw := []byte(`<rpc-reply><multi-routing-engine-results><multi-routing-engine-item><re-name>fpc0</re-name>
<software-information><host-name>ex-1</host-name><product-model>ex4300-48t</product-model>
<junos-version>20.4R3</junos-version></software-information></multi-routing-engine-item></multi-routing-engine-results></rpc-reply>`)
	f := parseFacts(raw)
	if f.Hostname != "ex-1" || f.Model != "ex4300-48t" || f.Version != "20.4R3" {
		t.Errorf("parseFacts() = %+v", f)
	}
}

func TestDialerProbeDefaults(t *testing.T) {
	d := &Dialer{ProbePort: 1, ProbeTimeout: 100 * time.Millisecond}
	if err := d.Probe(context.Background(), "127.0.0.1"); err == nil {
		t.Error("Probe() on a closed port should fail")
	}
}
