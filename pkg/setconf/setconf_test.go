package setconf

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pairpush/pairpush/pkg/util"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"blank lines", "\n\nset system host-name r1\n\n", "set system host-name r1"},
		{"full-line comment", "# header\nset system host-name r1", "set system host-name r1"},
		{"inline comment", "set system host-name r1 # primary", "set system host-name r1"},
		{"collapse whitespace", "  set   system\thost-name   r1  ", "set system host-name r1"},
		{"comment only line after cut", "   #   \nset a b c", "set a b c"},
		{"crlf", "set a b c\r\nset d e f\r\n", "set a b c\nset d e f"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"#only a comment",
		"set   a b c # x\n\n  delete x y  \n#z",
		"set interfaces ge-0/0/0 description \"a  b\"  # note",
		"\t\tset\tsystem\tntp server 1.1.1.1\r\n",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("utf8 passes through", func(t *testing.T) {
		in := "set system host-name r1\nset system login message \"héllo\""
		got, err := Decode([]byte(in))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if Clean(got) != Clean(in) {
			t.Errorf("Decode changed UTF-8 input: %q", got)
		}
	})

	t.Run("latin1 fallback", func(t *testing.T) {
		raw := []byte("set system login message \"caf\xe9\"")
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !strings.Contains(got, "café") {
			t.Errorf("Decode() = %q, want latin-1 decoded text", got)
		}
	})

	t.Run("bom stripped", func(t *testing.T) {
		got, _ := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "set a b c"...))
		if got != "set a b c" {
			t.Errorf("Decode() = %q", got)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantErrs     int
		wantWarnings int
	}{
		{"valid", "set system host-name r1\ndelete interfaces ge-0/0/0 unit 0", 0, 0},
		{"all verbs", "set system a b\ndelete system a\ndeactivate system a\nactivate system a\nprotect system a\nunprotect system a", 0, 0},
		{"uppercase verb", "SET system host-name r1", 0, 0},
		{"invalid verb", "show configuration", 1, 0},
		{"set too short", "set system", 1, 0},
		{"odd quotes", `set system login message "hello`, 1, 0},
		{"unbalanced brackets", "set policy-options community c members [ 65000:1", 1, 0},
		{"errors collected across lines", "bogus x y\nset system\nset a \"b", 3, 1},
		{"unknown hierarchy warns", "set bogus-hierarchy a b", 0, 1},
		{"dotdot warns", "set system a..b c", 0, 1},
		{"trailing whitespace warns", "set system host-name r1  ", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Validate(tt.input)
			if tt.wantErrs == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if len(v.Warnings) != tt.wantWarnings {
					t.Errorf("warnings = %v, want %d", v.Warnings, tt.wantWarnings)
				}
				return
			}

			var verr *util.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if len(verr.Errors) != tt.wantErrs {
				t.Errorf("errors = %v, want %d", verr.Errors, tt.wantErrs)
			}
			if len(verr.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", verr.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestValidateLineNumbers(t *testing.T) {
	_, err := Validate("set system host-name r1\n\nfoo bar baz")
	if err == nil || !strings.Contains(err.Error(), "line 2: invalid command 'foo'") {
		t.Errorf("Validate() error = %v, want line 2 reference", err)
	}
}

func TestParse(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		doc, v, err := Parse([]byte("# push\nset system ntp server 1.1.1.1\nset snmp community public\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if doc.Len() != 2 {
			t.Errorf("Len() = %d, want 2", doc.Len())
		}
		if len(v.Warnings) != 0 || len(doc.Warnings()) != 0 {
			t.Errorf("unexpected warnings %v", v.Warnings)
		}
	})

	t.Run("lines are copies", func(t *testing.T) {
		doc, _, _ := Parse([]byte("set system a b"))
		lines := doc.Lines()
		lines[0] = "mutated"
		if doc.Lines()[0] != "set system a b" {
			t.Error("Document was mutated through Lines()")
		}
	})

	for _, input := range []string{"", "   \n\t\n", "# only\n# comments\n"} {
		t.Run("empty "+strings.TrimSpace(input), func(t *testing.T) {
			_, _, err := Parse([]byte(input))
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("Parse(%q) error = %v, want validation failure", input, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "push.set")
	if err := os.WriteFile(good, []byte("set system host-name r1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	doc, _, err := LoadFile(good)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if doc.String() != "set system host-name r1" {
		t.Errorf("String() = %q", doc.String())
	}

	if _, _, err := LoadFile(filepath.Join(dir, "missing.set")); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("missing file error = %v, want validation failure", err)
	}
	if _, _, err := LoadFile(dir); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("directory error = %v, want validation failure", err)
	}
}

func TestStats(t *testing.T) {
	doc := NewDocument([]string{
		"set system host-name r1",
		"set interfaces ge-0/0/0 unit 0",
		"delete system ntp",
		"deactivate protocols bgp",
	})
	st := Stats(doc)
	if st.Total != 4 || st.Set != 2 || st.Delete != 1 || st.Other != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	want := []string{"interfaces", "protocols", "system"}
	if !reflect.DeepEqual(st.Hierarchies, want) {
		t.Errorf("Hierarchies = %v, want %v", st.Hierarchies, want)
	}
	if st.ByVerb["deactivate"] != 1 {
		t.Errorf("ByVerb = %v", st.ByVerb)
	}
}

func TestPreview(t *testing.T) {
	lines := make([]string, 25)
	for i := range lines {
		lines[i] = "set system a b"
	}
	doc := NewDocument(lines)

	got, rest := Preview(doc, DefaultPreviewLines)
	if len(got) != 20 || rest != 5 {
		t.Errorf("Preview() = %d lines, %d remaining", len(got), rest)
	}
	got, rest = Preview(doc, 100)
	if len(got) != 25 || rest != 0 {
		t.Errorf("Preview(100) = %d lines, %d remaining", len(got), rest)
	}
}

func TestInvertLine(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"set system ntp server 1.1.1.1", "delete system ntp server 1.1.1.1", true},
		{"delete system ntp server 1.1.1.1", "set system ntp server 1.1.1.1", true},
		{"deactivate protocols bgp", "deactivate protocols bgp", false},
		{"activate protocols bgp", "activate protocols bgp", false},
		{"settings foo", "settings foo", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := InvertLine(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("InvertLine(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestInvertLineInvolution(t *testing.T) {
	lines := []string{
		"set system ntp server 1.1.1.1",
		"delete interfaces ge-0/0/1 unit 0 family inet",
		`set system login message "a b"`,
		"set a",
	}
	for _, line := range lines {
		once, _ := InvertLine(line)
		twice, _ := InvertLine(once)
		if twice != line {
			t.Errorf("InvertLine twice on %q = %q", line, twice)
		}
	}
}

func TestRollbackLines(t *testing.T) {
	doc := NewDocument([]string{
		"set system ntp server 1.1.1.1",
		"deactivate protocols bgp",
		"delete snmp community public",
	})
	converted, skipped := RollbackLines(doc)
	wantConverted := []string{"delete system ntp server 1.1.1.1", "set snmp community public"}
	if !reflect.DeepEqual(converted, wantConverted) {
		t.Errorf("converted = %v, want %v", converted, wantConverted)
	}
	if !reflect.DeepEqual(skipped, []string{"deactivate protocols bgp"}) {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestLineSet(t *testing.T) {
	a := NewLineSet("set a 1", "set b 2", "set c 3", "set a 1")
	b := NewLineSet("set b 2", "set d 4")

	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3 after dedup", a.Len())
	}
	if got := a.Intersect(b).Sorted(); !reflect.DeepEqual(got, []string{"set b 2"}) {
		t.Errorf("Intersect = %v", got)
	}
	if got := a.Difference(b).Sorted(); !reflect.DeepEqual(got, []string{"set a 1", "set c 3"}) {
		t.Errorf("Difference = %v", got)
	}
}

func TestParseDeviceText(t *testing.T) {
	text := "## Last commit: 2024-01-01\nset version 20.4R3\n\n  set system host-name r1  \n# comment\n"
	got := ParseDeviceText(text)
	want := []string{"set version 20.4R3", "set system host-name r1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDeviceText() = %v, want %v", got, want)
	}
}
