package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pairpush/pairpush/pkg/cli"
	"github.com/pairpush/pairpush/pkg/diff"
	"github.com/pairpush/pairpush/pkg/preflight"
	"github.com/pairpush/pairpush/pkg/push"
)

// Console writes human-readable output. With JSON set, only the final
// verdict or comparison is written, as a JSON document.
type Console struct {
	Out  io.Writer
	JSON bool

	mu sync.Mutex
}

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer, asJSON bool) *Console {
	return &Console{Out: out, JSON: asJSON}
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Console) human(fn func()) {
	if c.JSON {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Console) emitJSON(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(c.Out, "{\"error\": %q}\n", err.Error())
	}
}

func (c *Console) Target(group string, devices []string) {
	c.human(func() {
		c.printf("%s %s\n", cli.Bold("Target group:"), cli.Cyan(group))
		c.printf("Devices: %s\n", strings.Join(devices, ", "))
	})
}

func (c *Console) Document(doc Document) {
	c.human(func() {
		st := doc.Stats
		c.printf("\n%s %s\n", cli.Bold("Configuration:"), doc.Source)
		c.printf("  %d lines (%d set, %d delete, %d other)\n", st.Total, st.Set, st.Delete, st.Other)
		if len(st.Hierarchies) > 0 {
			c.printf("  hierarchies: %s\n", strings.Join(st.Hierarchies, ", "))
		}
		for _, w := range doc.Warnings {
			c.printf("  %s %s\n", cli.Yellow("warning:"), w)
		}
		for _, line := range doc.Preview {
			c.printf("    %s\n", cli.Dim(line))
		}
		if doc.More > 0 {
			c.printf("    ... and %d more lines\n", doc.More)
		}
	})
}

func (c *Console) DryRun(operation string, devices []string) {
	c.human(func() {
		c.printf("\n%s\n", cli.Yellow("DRY RUN - no changes will be made"))
		if operation == "compare" {
			c.printf("Configuration comparison would be performed between %s\n", strings.Join(devices, " and "))
			return
		}
		c.printf("%s would be applied to:\n", operation)
		for _, d := range devices {
			c.printf("  %s\n", d)
		}
	})
}

func (c *Console) Connectivity(results []preflight.Connectivity) {
	c.human(func() {
		c.printf("\n%s\n", cli.Bold("Connectivity"))
		t := cli.NewTableTo(c.Out, "DEVICE", "STATUS", "HOSTNAME", "MODEL", "VERSION", "LATENCY")
		for _, r := range results {
			if !r.Reachable {
				msg := "unreachable"
				if r.Err != nil {
					msg = r.Err.Error()
				}
				t.Row(r.Device, cli.Red("Failed"), cli.Truncate(msg, 60), "", "", "")
				continue
			}
			t.Row(r.Device, cli.Green("OK"), r.Facts.Hostname, r.Facts.Model, r.Facts.Version,
				r.Latency.Round(time.Millisecond).String())
		}
		t.Flush()
	})
}

func (c *Console) Pending(results []preflight.Pending) {
	c.human(func() {
		var dirty []preflight.Pending
		for _, p := range results {
			if len(p.Lines) > 0 || p.Err != nil {
				dirty = append(dirty, p)
			}
		}
		if len(dirty) == 0 {
			c.printf("%s\n", cli.Green("No pending configuration found"))
			return
		}
		for _, p := range dirty {
			if p.Err != nil {
				c.printf("%s %s: %v\n", cli.Red("pending check failed on"), p.Device, p.Err)
				continue
			}
			c.printf("%s %s (%d lines):\n", cli.Red("Pending configuration on"), p.Device, len(p.Lines))
			for _, l := range p.Lines {
				c.printf("    %s\n", l)
			}
		}
		c.printf("%s\n", cli.Yellow("Commit or discard uncommitted configuration before proceeding."))
	})
}

func (c *Console) Overlap(results []preflight.Overlap, decision preflight.Decision) {
	c.human(func() {
		c.printf("\n%s\n", cli.Bold("Existing configuration"))
		t := cli.NewTableTo(c.Out, "DEVICE", "STATUS", "EXISTING", "NEW")
		for _, o := range results {
			status := string(o.Status)
			if o.Err != nil {
				status = cli.Yellow("unknown: " + cli.Truncate(o.Err.Error(), 40))
			}
			t.Row(o.Device, status, fmt.Sprintf("%d/%d", o.Existing(), o.Total), fmt.Sprint(o.New()))
		}
		t.Flush()
		if decision.NoOp {
			c.printf("%s\n", cli.Yellow(decision.Message))
		} else {
			c.printf("%s\n", decision.Message)
		}
	})
}

func (c *Console) DeviceDone(r push.Result) {
	c.human(func() {
		if r.Success {
			c.printf("%s %s: %s\n", cli.Green("✓"), r.Device, r.Message)
		} else {
			c.printf("%s %s: %s\n", cli.Red("✗"), r.Device, r.Message)
		}
		if len(r.Skipped) > 0 {
			c.printf("    %s %d lines not rolled back (not set/delete)\n", cli.Yellow("note:"), len(r.Skipped))
		}
	})
}

func (c *Console) Verdict(v *push.Verdict) {
	if c.JSON {
		c.emitJSON(verdictJSON(v))
		return
	}
	c.human(func() {
		title := "Operation Results - " + strings.ToUpper(string(v.Operation))
		if v.DryRun {
			title += " (dry run)"
		}
		c.printf("\n%s\n", cli.Bold(title))
		t := cli.NewTableTo(c.Out, "DEVICE", "STATUS", "STATE", "MESSAGE")
		for _, r := range v.Results {
			t.Row(r.Device, cli.Status(r.Success), string(r.State), r.Message)
		}
		t.Flush()
		if v.Success {
			c.printf("%s\n", cli.Green(v.Summary()))
		} else {
			c.printf("%s\n", cli.Yellow(v.Summary()))
		}
	})
}

// verdictJSON adds the error text that Result.Err does not marshal.
func verdictJSON(v *push.Verdict) interface{} {
	type result struct {
		push.Result
		Error string `json:"error,omitempty"`
	}
	out := struct {
		*push.Verdict
		Results []result `json:"results"`
		Summary string   `json:"summary"`
	}{Verdict: v, Summary: v.Summary()}
	for _, r := range v.Results {
		res := result{Result: r}
		if r.Err != nil {
			res.Error = r.Err.Error()
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func (c *Console) Comparison(res *diff.Result, s *diff.Summary) {
	if c.JSON {
		c.emitJSON(struct {
			Left   string       `json:"left"`
			Right  string       `json:"right"`
			Result *diff.Result `json:"result"`
		}{s.Left, s.Right, res})
		return
	}
	c.human(func() {
		c.printf("\n%s %s vs %s\n", cli.Bold("Configuration comparison:"), s.Left, s.Right)
		t := cli.NewTableTo(c.Out, "METRIC", s.Left, s.Right)
		t.Row("total lines", fmt.Sprint(res.Total1), fmt.Sprint(res.Total2))
		t.Row("ignored", fmt.Sprint(res.Ignored1), fmt.Sprint(res.Ignored2))
		t.Row("common", fmt.Sprint(len(res.Common)), fmt.Sprint(len(res.Common)))
		t.Row("similar", fmt.Sprint(len(res.Pairs)), fmt.Sprint(len(res.Pairs)))
		t.Row("unique", fmt.Sprint(len(res.Unique1)), fmt.Sprint(len(res.Unique2)))
		t.Flush()

		if res.Identical() {
			c.printf("\n%s\n", cli.Green("Configurations are identical apart from expected differences"))
		}
		c.uniqueBlock(s.Left, s.Unique1, s.Unique1Hidden)
		c.uniqueBlock(s.Right, s.Unique2, s.Unique2Hidden)

		if len(s.Pairs) > 0 {
			c.printf("\n%s\n", cli.Bold("Similar lines"))
			mk := diff.Marker{Removed: cli.Red, Added: cli.Green}
			if !cli.ColorEnabled() {
				mk = diff.PlainMarker
			}
			for _, p := range s.Pairs {
				left, right := diff.Render(p.Highlight, mk)
				c.printf("  %.0f%%\n    %s: %s\n    %s: %s\n", p.Score*100, s.Left, left, s.Right, right)
			}
			if s.PairsHidden > 0 {
				c.printf("  ... and %d more similar pairs\n", s.PairsHidden)
			}
		}

		if len(s.Suggestions) > 0 {
			c.printf("\n%s\n", cli.Bold("Suggestions"))
			for _, sg := range s.Suggestions {
				c.printf("  - %s\n", sg)
			}
		}
	})
}

func (c *Console) uniqueBlock(dev string, lines []string, hidden int) {
	if len(lines) == 0 {
		return
	}
	c.printf("\n%s\n", cli.Bold("Only on "+dev))
	for _, l := range lines {
		c.printf("  %s\n", l)
	}
	if hidden > 0 {
		c.printf("  ... and %d more lines\n", hidden)
	}
}

func (c *Console) Notice(level Level, msg string) {
	c.human(func() {
		switch level {
		case LevelSuccess:
			c.printf("%s\n", cli.Green(msg))
		case LevelWarning:
			c.printf("%s %s\n", cli.Yellow("warning:"), msg)
		case LevelError:
			c.printf("%s %s\n", cli.Red("error:"), msg)
		default:
			c.printf("%s\n", msg)
		}
	})
}
