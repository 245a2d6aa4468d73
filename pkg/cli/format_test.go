package cli

import (
	"strings"
	"testing"
)

func TestDotPad(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "normal case",
			input:    "10.0.0.1",
			width:    20,
			expected: "10.0.0.1 " + strings.Repeat(".", 11),
		},
		{
			name:     "short name",
			input:    "ok",
			width:    10,
			expected: "ok " + strings.Repeat(".", 7),
		},
		{
			name:     "name equals width minus one",
			input:    "abcde",
			width:    6,
			expected: "abcde",
		},
		{
			name:     "name longer than width",
			input:    "abcdefgh",
			width:    6,
			expected: "abcdefgh",
		},
		{
			name:     "zero width",
			input:    "abc",
			width:    0,
			expected: "abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DotPad(tt.input, tt.width); got != tt.expected {
				t.Errorf("DotPad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.expected)
			}
		})
	}
}

func TestColors(t *testing.T) {
	prev := ColorEnabled()
	defer SetColor(prev)

	SetColor(false)
	if Green("ok") != "ok" || Red("x") != "x" || Status(true) != "Success" {
		t.Error("colour disabled should return plain text")
	}

	SetColor(true)
	if got := Green("ok"); got != "\033[32mok\033[0m" {
		t.Errorf("Green() = %q", got)
	}
	if got := Status(false); !strings.Contains(got, "Failed") || !strings.HasPrefix(got, "\033[31m") {
		t.Errorf("Status(false) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
		{"tiny", 3, "tiny"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
