package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pairpush/pairpush/pkg/cli"
	"github.com/pairpush/pairpush/pkg/diff"
	"github.com/pairpush/pairpush/pkg/preflight"
	"github.com/pairpush/pairpush/pkg/push"
	"github.com/pairpush/pairpush/pkg/setconf"
)

var (
	_ Sink = (*Console)(nil)
	_ Sink = (*Recorder)(nil)
	_ Sink = Discard{}
)

func plain(t *testing.T) {
	t.Helper()
	prev := cli.ColorEnabled()
	cli.SetColor(false)
	t.Cleanup(func() { cli.SetColor(prev) })
}

func sampleVerdict() *push.Verdict {
	a := push.NewAggregator()
	a.Add(push.Result{Device: "10.0.0.1", Success: true, State: push.StateChecked, Message: "Configuration check passed"})
	a.Add(push.Result{Device: "10.0.0.2", State: push.StateFailed, Message: "load failed", Err: errors.New("load failed")})
	return a.Verdict(push.OpCheck, []string{"10.0.0.1", "10.0.0.2"})
}

func TestConsoleVerdict(t *testing.T) {
	plain(t)
	var buf bytes.Buffer
	NewConsole(&buf, false).Verdict(sampleVerdict())

	out := buf.String()
	for _, want := range []string{"Operation Results - CHECK", "10.0.0.1", "Success", "Failed", "1/2 devices succeeded, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleVerdictJSON(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	c.Target("core", []string{"a", "b"})
	c.Notice(LevelInfo, "ignored in json mode")
	c.Verdict(sampleVerdict())

	var got struct {
		Operation string `json:"operation"`
		Success   bool   `json:"success"`
		Summary   string `json:"summary"`
		Results   []struct {
			Device string `json:"device"`
			Error  string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a single JSON document: %v\n%s", err, buf.String())
	}
	if got.Operation != "check" || got.Success || len(got.Results) != 2 {
		t.Errorf("decoded = %+v", got)
	}
	if got.Results[1].Error != "load failed" {
		t.Errorf("error text = %q", got.Results[1].Error)
	}
}

func TestConsoleComparison(t *testing.T) {
	plain(t)
	a := setconf.NewLineSet("set vlan 10", "set ip 1.1.1.1/24", "set only left")
	b := setconf.NewLineSet("set vlan 20", "set ip 1.1.1.1/24")
	res := diff.Compare(a, b, diff.Options{})
	s := res.Summarize("r1", "r2", diff.DefaultMaxUnique, diff.DefaultMaxPairs)

	var buf bytes.Buffer
	NewConsole(&buf, false).Comparison(res, s)
	out := buf.String()
	for _, want := range []string{"Only on r1", "set only left", "Similar lines", "[-10-]", "{+20+}", "Suggestions"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsolePreflight(t *testing.T) {
	plain(t)
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	c.Connectivity([]preflight.Connectivity{
		{Device: "10.0.0.1", Reachable: true},
		{Device: "10.0.0.2", Err: errors.New("connection refused")},
	})
	c.Pending([]preflight.Pending{{Device: "10.0.0.2", Lines: []string{"set x y"}}})
	c.Overlap([]preflight.Overlap{{Device: "10.0.0.1", Total: 1, NewLines: []string{"set a"}, Status: preflight.StatusAllNew}},
		preflight.Decision{Proceed: true, Message: "all configuration lines are new"})

	out := buf.String()
	for _, want := range []string{"connection refused", "Pending configuration on 10.0.0.2", "set x y", "all-new", "all configuration lines are new"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	var wg sync.WaitGroup
	for _, dev := range []string{"a", "b"} {
		wg.Add(1)
		go func(dev string) {
			defer wg.Done()
			r.DeviceDone(push.Result{Device: dev})
		}(dev)
	}
	wg.Wait()
	r.Verdict(sampleVerdict())
	r.Notice(LevelWarning, "careful")

	if len(r.Done) != 2 || r.Final == nil {
		t.Errorf("Recorder = %+v", r)
	}
	seen := r.Seen()
	if seen[len(seen)-2] != "verdict" || r.Notices[0] != "warning: careful" {
		t.Errorf("Seen() = %v, Notices = %v", seen, r.Notices)
	}
}
