package device

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"
	"testing"
	"time"
)

type textSession struct {
	Session
	text map[Database]string
	err  error
}

func (s *textSession) ReadConfig(_ context.Context, db Database) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text[db], nil
}

func TestReadLines(t *testing.T) {
	s := &textSession{text: map[Database]string{
		Committed: "## Last commit: 2024-05-01 10:00:00 UTC by admin\nset version 21.2R3\n\nset system host-name r1\n",
	}}
	lines, err := ReadLines(context.Background(), s, Committed)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	want := []string{"set version 21.2R3", "set system host-name r1"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("ReadLines() = %v, want %v", lines, want)
	}

	set, err := ReadLineSet(context.Background(), s, Candidate)
	if err != nil || set.Len() != 0 {
		t.Errorf("ReadLineSet(candidate) = %v, %v", set, err)
	}
}

func TestReadLinesError(t *testing.T) {
	boom := errors.New("rpc timeout")
	_, err := ReadLineSet(context.Background(), &textSession{err: boom}, Committed)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestProbeTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	if err := ProbeTCP(context.Background(), "127.0.0.1", port, time.Second); err != nil {
		t.Errorf("ProbeTCP(open port) error = %v", err)
	}

	ln.Close()
	if err := ProbeTCP(context.Background(), "127.0.0.1", port, time.Second); err == nil {
		t.Errorf("ProbeTCP(closed port %s) should fail", strconv.Itoa(port))
	}
}
