package telemetry

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// LogHandler forwards records at or above Level to a publisher as log
// events and passes every record on to Next.
type LogHandler struct {
	Next  slog.Handler
	Pub   Publisher
	Level slog.Leveler

	attrs []slog.Attr
	group string
}

// NewLogHandler tees next into pub for records at level and above.
func NewLogHandler(next slog.Handler, pub Publisher, level slog.Leveler) *LogHandler {
	return &LogHandler{Next: next, Pub: pub, Level: level}
}

func (h *LogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.Level.Level() || h.Next.Enabled(ctx, l)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.Level.Level() {
		ev := LogLine{Event: newEvent(EventLog), Level: strings.ToLower(r.Level.String()), Message: r.Message}
		if !r.Time.IsZero() {
			ev.TS = r.Time.UTC().Format(time.RFC3339Nano)
		}
		n := len(h.attrs) + r.NumAttrs()
		if n > 0 {
			ev.Attrs = make(map[string]any, n)
			for _, a := range h.attrs {
				ev.Attrs[a.Key] = a.Value.Resolve().Any()
			}
			r.Attrs(func(a slog.Attr) bool {
				v := a.Value.Resolve().Any()
				if err, ok := v.(error); ok {
					v = err.Error()
				}
				ev.Attrs[h.key(a.Key)] = v
				return true
			})
		}
		h.Pub.BroadcastJSON(ev)
	}
	if h.Next.Enabled(ctx, r.Level) {
		return h.Next.Handle(ctx, r)
	}
	return nil
}

func (h *LogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.Next = h.Next.WithAttrs(attrs)
	c.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.Next = h.Next.WithGroup(name)
	if c.group == "" {
		c.group = name
	} else {
		c.group += "." + name
	}
	return &c
}
