package telemetry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/dsp"
)

type recorder struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *recorder) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.events = append(r.events, m)
	r.mu.Unlock()
}

func TestProgressFunc(t *testing.T) {
	t.Parallel()
	var rec recorder
	fn := ProgressFunc(&rec, "job-1")
	fn(apt.StageDemodulating, 0.4)
	fn(apt.StageDone, 1)

	if len(rec.events) != 2 {
		t.Fatalf("got %d events", len(rec.events))
	}
	ev := rec.events[0]
	if ev["type"] != string(EventProgress) || ev["job"] != "job-1" || ev["stage"] != string(apt.StageDemodulating) || ev["percent"] != 40.0 {
		t.Errorf("event = %v", ev)
	}
	if _, err := time.Parse(time.RFC3339Nano, ev["ts"].(string)); err != nil {
		t.Errorf("ts: %v", err)
	}
}

func TestDecodeDone(t *testing.T) {
	t.Parallel()
	res := &apt.Result{
		Lines:    make([]apt.Line, 3),
		Frame:    apt.Frame{Starts: []int{0, 10, 20}, Synced: []bool{true, false, true}},
		Warnings: []error{dsp.ErrNoSync},
	}
	ev := NewDecodeDone("j", res, nil, 1500*time.Millisecond)
	if !ev.OK || ev.Lines != 3 || ev.SyncedLines != 2 || len(ev.Warnings) != 1 || ev.DurationMS != 1500 {
		t.Errorf("ev = %+v", ev)
	}

	failed := NewDecodeDone("j", nil, errors.New("boom"), 0)
	if failed.OK || failed.Error != "boom" || failed.Lines != 0 {
		t.Errorf("failed = %+v", failed)
	}
}

func TestLogHandler(t *testing.T) {
	t.Parallel()
	var rec recorder
	h := NewLogHandler(slog.DiscardHandler, &rec, slog.LevelWarn)
	log := slog.New(h).With("job", "abc").WithGroup("decode")

	log.Info("quiet")
	log.Warn("no sync", "peaks", 0, "err", errors.New("flat"))

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev["type"] != string(EventLog) || ev["level"] != "warn" || ev["message"] != "no sync" {
		t.Errorf("event = %v", ev)
	}
	attrs := ev["attrs"].(map[string]any)
	if attrs["job"] != "abc" || attrs["decode.peaks"] != 0.0 || attrs["decode.err"] != "flat" {
		t.Errorf("attrs = %v", attrs)
	}
}
