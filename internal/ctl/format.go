// Package ctl implements the client side of aptdec: commands that talk to
// a running `aptdec serve` over HTTP and WebSocket and render the results
// to a terminal.
package ctl

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

// printer renders to w, with ANSI colors when color is set.
type printer struct {
	w     io.Writer
	color bool
}

// newPrinter colors output only when w is a terminal.
func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			p.color = fi.Mode()&os.ModeCharDevice != 0
		}
	}
	return p
}

func (p *printer) printf(format string, args ...any) { fmt.Fprintf(p.w, format, args...) }
func (p *printer) println(args ...any)               { fmt.Fprintln(p.w, args...) }

// colorize wraps text with an ANSI color sequence.
func (p *printer) colorize(color, text string) string {
	if !p.color || color == "" {
		return text
	}
	return color + text + reset
}

func (p *printer) header(title string) string { return p.colorize(bold, title) }

func (p *printer) rule(width int) string { return p.colorize(dim, "  "+strings.Repeat("─", width)) }

// stateColor picks the color for a server state.
func stateColor(state string) string {
	switch state {
	case "IDLE":
		return green
	case "DECODING":
		return cyan
	case "BOOTING":
		return dim
	default:
		return white
	}
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders d like "2h 14m 8s" or "45s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatBytes renders a byte count as a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// progressBar builds an ASCII bar of the given width.
func (p *printer) progressBar(pct, width int) string {
	filled := min(max(pct*width/100, 0), width)
	return p.colorize(green, strings.Repeat("=", filled)) + strings.Repeat(" ", width-filled)
}
