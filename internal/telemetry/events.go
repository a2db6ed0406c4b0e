// Package telemetry defines the typed events that flow from a running
// aptdec server to its WebSocket clients, and adapters that turn decoder
// progress and log records into those events.
package telemetry

import (
	"time"

	"github.com/large-farva/aptdec/internal/apt"
)

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat   EventType = "heartbeat"
	EventState       EventType = "state"
	EventProgress    EventType = "progress"
	EventLog         EventType = "log"
	EventDecodeStart EventType = "decode_start"
	EventDecodeDone  EventType = "decode_done"
)

// Types lists every event type in the order a decode produces them.
var Types = []EventType{EventState, EventDecodeStart, EventProgress, EventLog, EventDecodeDone, EventHeartbeat}

// Event is the envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time in the format used by all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func newEvent(t EventType) Event {
	return Event{Type: t, TS: NowTS(), Component: "aptdec"}
}

// Publisher is where events go; *ws.Hub implements it.
type Publisher interface {
	BroadcastJSON(v any)
}

// Heartbeat is sent periodically so clients can detect connectivity.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"clients"`
}

func NewHeartbeat(state string, uptime time.Duration, clients int) Heartbeat {
	return Heartbeat{Event: newEvent(EventHeartbeat), State: state, UptimeSeconds: int64(uptime.Seconds()), Clients: clients}
}

// StateTransition is emitted when the server moves between IDLE and
// DECODING.
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateTransition(from, to string) StateTransition {
	return StateTransition{Event: newEvent(EventState), From: from, To: to}
}

// DecodeStart announces a new job.
type DecodeStart struct {
	Event
	Job     string  `json:"job"`
	Profile string  `json:"profile"`
	Rate    int     `json:"rate"`
	Seconds float64 `json:"seconds"`
}

func NewDecodeStart(job, profile string, rate int, seconds float64) DecodeStart {
	return DecodeStart{Event: newEvent(EventDecodeStart), Job: job, Profile: profile, Rate: rate, Seconds: seconds}
}

// Progress reports a decoder stage transition.
type Progress struct {
	Event
	Job     string  `json:"job"`
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
}

func NewProgress(job string, stage apt.Stage, fraction float64) Progress {
	return Progress{Event: newEvent(EventProgress), Job: job, Stage: string(stage), Percent: fraction * 100}
}

// ProgressFunc adapts a publisher to apt.Decoder.Progress for one job.
func ProgressFunc(pub Publisher, job string) func(apt.Stage, float64) {
	return func(stage apt.Stage, fraction float64) {
		pub.BroadcastJSON(NewProgress(job, stage, fraction))
	}
}

// DecodeDone closes a job, successful or not.
type DecodeDone struct {
	Event
	Job         string   `json:"job"`
	OK          bool     `json:"ok"`
	Error       string   `json:"error,omitempty"`
	Lines       int      `json:"lines"`
	SyncedLines int      `json:"synced_lines"`
	Warnings    []string `json:"warnings,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
}

// NewDecodeDone summarises a decode. res may be nil when err is set.
func NewDecodeDone(job string, res *apt.Result, err error, took time.Duration) DecodeDone {
	ev := DecodeDone{Event: newEvent(EventDecodeDone), Job: job, OK: err == nil, DurationMS: took.Milliseconds()}
	if err != nil {
		ev.Error = err.Error()
	}
	if res != nil {
		ev.Lines = len(res.Lines)
		ev.SyncedLines = res.Frame.SyncedLines()
		for _, w := range res.Warnings {
			ev.Warnings = append(ev.Warnings, w.Error())
		}
	}
	return ev
}

// LogLine carries a log record at a severity level.
type LogLine struct {
	Event
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}
