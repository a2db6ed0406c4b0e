package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
	// Until stops watching after the first event of this type.
	Until string
}

// wsURL maps the server's http(s) URL to its event stream.
func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Watch streams server events to w until ctx is cancelled or the server
// goes away.
func (c *Client) Watch(ctx context.Context, w io.Writer, opts WatchOptions) error {
	target, err := wsURL(c.BaseURL)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	p := newPrinter(w)
	if !opts.JSON {
		p.println()
		p.printf("  %s %s\n", p.colorize(green, "connected"), p.colorize(dim, target))
		if len(opts.Filter) > 0 {
			p.printf("  %s %s\n", p.colorize(dim, "filter:"), p.colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		p.println(p.rule(50))
		p.println()
	}

	done := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var ev map[string]any
			if err := json.Unmarshal(msg, &ev); err != nil {
				p.printf("  %s\n", msg)
				continue
			}
			typ, _ := ev["type"].(string)
			if len(opts.Filter) > 0 && !slices.Contains(opts.Filter, typ) {
				continue
			}
			if opts.JSON {
				p.println(string(msg))
			} else {
				p.renderEvent(ev)
			}
			if opts.Until != "" && typ == opts.Until {
				done <- nil
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		if !opts.JSON {
			p.println()
			p.println(p.colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		return nil
	case err := <-done:
		if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return fmt.Errorf("event stream: %w", err)
	}
}

// renderEvent prints one event in a human-friendly format. Unknown types
// are dumped as indented JSON so nothing is lost.
func (p *printer) renderEvent(ev map[string]any) {
	typ, _ := ev["type"].(string)
	ts := p.colorize(dim, formatEventTime(ev))
	str := func(k string) string {
		s, _ := ev[k].(string)
		return s
	}
	num := func(k string) float64 {
		f, _ := ev[k].(float64)
		return f
	}

	switch typ {
	case "heartbeat":
		state := str("state")
		p.printf("  %s %s  %s  up %s  watchers %d\n",
			ts,
			p.colorize(dim, "heartbeat"),
			p.colorize(stateColor(state), state),
			p.colorize(dim, formatDuration(time.Duration(num("uptime_seconds"))*time.Second)),
			int(num("clients")),
		)

	case "state":
		from, to := str("from"), str("to")
		p.printf("  %s %s  %s %s %s\n",
			ts,
			p.colorize(bold, "STATE"),
			p.colorize(stateColor(from), from),
			p.colorize(dim, "->"),
			p.colorize(stateColor(to), to),
		)

	case "log":
		msg := str("message")
		if attrs, ok := ev["attrs"].(map[string]any); ok && len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				msg += p.colorize(dim, fmt.Sprintf(" %s=%v", k, attrs[k]))
			}
		}
		p.printf("  %s %s  %s\n", ts, p.formatLogLevel(str("level")), msg)

	case "decode_start":
		p.println()
		p.printf("  %s %s %s\n", ts, p.header("DECODE"), p.colorize(dim, shortJob(str("job"))))
		p.printf("    %-10s %s\n", "profile", str("profile"))
		p.printf("    %-10s %d Hz, %.1f s\n", "input", int(num("rate")), num("seconds"))

	case "progress":
		pct := num("percent")
		p.printf("  %s %s  [%s] %3.0f%%  %s\n",
			ts,
			p.colorize(cyan, padRight(str("stage"), 12)),
			p.progressBar(int(pct), 20),
			pct,
			p.colorize(dim, shortJob(str("job"))),
		)

	case "decode_done":
		took := time.Duration(num("duration_ms")) * time.Millisecond
		if ok, _ := ev["ok"].(bool); !ok {
			p.printf("  %s %s  %s\n", ts, p.colorize(red, "FAILED"), str("error"))
			break
		}
		p.printf("  %s %s  %d lines, %d synced, %s\n",
			ts, p.colorize(green, "DONE  "), int(num("lines")), int(num("synced_lines")), took.Round(time.Millisecond))
		if ws, ok := ev["warnings"].([]any); ok {
			for _, w := range ws {
				p.printf("    %s %v\n", p.colorize(yellow, "warning:"), w)
			}
		}
		p.println()

	default:
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			return
		}
		p.printf("  %s\n", pretty)
	}
}

func shortJob(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatEventTime extracts and shortens the timestamp of an event.
func formatEventTime(ev map[string]any) string {
	raw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw[:min(len(raw), 8)]
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width level label.
func (p *printer) formatLogLevel(level string) string {
	switch level {
	case "debug":
		return p.colorize(dim, "DEBUG")
	case "info":
		return p.colorize(green, "INFO ")
	case "warn":
		return p.colorize(yellow, "WARN ")
	case "error":
		return p.colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
