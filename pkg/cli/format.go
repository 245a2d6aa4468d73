// Package cli provides shared formatting helpers for the pairpush CLI.
package cli

import (
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR is set (per no-color.org) or stdout is
// not a terminal.
var colorEnabled atomic.Bool

func init() {
	colorEnabled.Store(os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd())))
}

// SetColor forces colour on or off.
func SetColor(on bool) {
	colorEnabled.Store(on)
}

// ColorEnabled reports whether the helpers emit ANSI codes.
func ColorEnabled() bool {
	return colorEnabled.Load()
}

func wrap(code, s string) string {
	if !colorEnabled.Load() {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green wraps s in ANSI green.
func Green(s string) string { return wrap("32", s) }

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string { return wrap("33", s) }

// Red wraps s in ANSI red.
func Red(s string) string { return wrap("31", s) }

// Cyan wraps s in ANSI cyan.
func Cyan(s string) string { return wrap("36", s) }

// Bold wraps s in ANSI bold.
func Bold(s string) string { return wrap("1", s) }

// Dim wraps s in ANSI dim.
func Dim(s string) string { return wrap("2", s) }

// Status renders a success flag as a coloured word.
func Status(ok bool) string {
	if ok {
		return Green("Success")
	}
	return Red("Failed")
}

// DotPad pads name with dots to the given width.
// Example: DotPad("10.0.0.1", 20) → "10.0.0.1 ..........."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
