package wavio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/large-farva/aptdec/internal/dsp"
)

// StepExporter writes every intermediate decoding step to Dir as a WAV
// file named NN_<id>.wav, numbered in the order steps arrive. Signals keep
// their rate; filters are written at 1 Hz. Everything is scaled to full
// range. It satisfies apt.StepSink.
type StepExporter struct {
	Dir string
	Log *slog.Logger

	n       int
	Written []string
}

// NewStepExporter creates dir if needed.
func NewStepExporter(dir string, log *slog.Logger) (*StepExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create step dir: %w", err)
	}
	return &StepExporter{Dir: dir, Log: log}, nil
}

// Signal writes one intermediate signal.
func (e *StepExporter) Signal(id string, sig dsp.Signal) error {
	return e.write(id, sig.Samples, int(sig.Rate))
}

// Filter writes the coefficients of one designed filter.
func (e *StepExporter) Filter(id string, taps dsp.Coefficients) error {
	samples := make([]float32, len(taps))
	for i, v := range taps {
		samples[i] = float32(v)
	}
	return e.write(id, samples, 1)
}

func (e *StepExporter) write(id string, samples []float32, rate int) error {
	name := fmt.Sprintf("%02d_%s.wav", e.n, id)
	e.n++
	path := filepath.Join(e.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteNormalized(f, samples, max(rate, 1)); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	e.Written = append(e.Written, path)
	if e.Log != nil {
		e.Log.Debug("step written", "id", id, "path", path, "samples", len(samples))
	}
	return nil
}
