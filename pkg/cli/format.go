// Package cli provides shared formatting helpers for the routecheck CLI.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func wrap(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green wraps s in ANSI green. Returns s unchanged when NO_COLOR is set.
func Green(s string) string { return wrap("32", s) }

// Yellow wraps s in ANSI yellow. Returns s unchanged when NO_COLOR is set.
func Yellow(s string) string { return wrap("33", s) }

// Red wraps s in ANSI red. Returns s unchanged when NO_COLOR is set.
func Red(s string) string { return wrap("31", s) }

// Bold wraps s in ANSI bold. Returns s unchanged when NO_COLOR is set.
func Bold(s string) string { return wrap("1", s) }

// Dim wraps s in ANSI dim. Returns s unchanged when NO_COLOR is set.
func Dim(s string) string { return wrap("2", s) }

// Status colors a result keyword: PASS green, FAIL and ERROR red, SKIP
// yellow. Other words are returned unchanged.
func Status(s string) string {
	switch s {
	case "PASS":
		return Green(s)
	case "FAIL", "ERROR":
		return Red(s)
	case "SKIP":
		return Yellow(s)
	}
	return s
}

// DotPad pads name with dots to the given width.
// Example: DotPad("forwarding", 20) → "forwarding ........."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// Duration renders d for progress lines: "<1s", "42s", "7m", "7m05s".
func Duration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
