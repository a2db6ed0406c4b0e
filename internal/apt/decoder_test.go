package apt_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/dsp"
	"github.com/large-farva/aptdec/internal/synth"
)

var (
	recOnce sync.Once
	rec     synth.Recording
	recErr  error
)

// recording30s is a 30 second, 11025 Hz synthetic pass shared by the
// end-to-end tests.
func recording30s(t *testing.T) synth.Recording {
	t.Helper()
	recOnce.Do(func() {
		rec, recErr = synth.Generate(synth.Options{Rate: 11025, Duration: 30 * time.Second})
	})
	if recErr != nil {
		t.Fatal(recErr)
	}
	return rec
}

func TestDecodeSynthetic(t *testing.T) {
	t.Parallel()
	r := recording30s(t)
	d := apt.NewDecoder(apt.ProfileStandard)

	res, err := d.Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings: %v", res.Warnings)
	}
	if len(res.Lines) != 60 {
		t.Fatalf("decoded %d lines, want 60", len(res.Lines))
	}
	for i, l := range res.Lines {
		if len(l) != 2080 {
			t.Fatalf("line %d has %d pixels, want 2080", i, len(l))
		}
	}
	if res.Frame.SyncedLines() < 58 {
		t.Errorf("only %d of 60 lines synced", res.Frame.SyncedLines())
	}
	for k, start := range res.Frame.Starts {
		want := r.LineStartAt(k, res.WorkRate)
		if math.Abs(float64(start)-want) > 2 {
			t.Errorf("line %d starts at %d, want %.1f ± 2", k, start, want)
		}
	}

	// Sync A alternates two black and two white pixels; after the envelope
	// filter only the pulse centres reach the extremes. Channel B's space
	// data is near white.
	line := res.Lines[30]
	if line[9] > 64 || line[11] < 192 || line[13] > 64 {
		t.Errorf("sync A pixels = %v", line[:20])
	}
	if px := line[apt.ChannelPixels+apt.SyncPixels+10]; px < 192 {
		t.Errorf("channel B space pixel = %d, want near white", px)
	}
}

func TestDecodeWithoutSync(t *testing.T) {
	t.Parallel()
	r := recording30s(t)
	d := apt.NewDecoder(apt.ProfileStandard)
	d.Sync.Enabled = false

	res, err := d.Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 60 {
		t.Fatalf("decoded %d lines, want 60", len(res.Lines))
	}
	for k, start := range res.Frame.Starts {
		if start != k*6240 {
			t.Fatalf("line %d starts at %d, want %d", k, start, k*6240)
		}
	}
	if res.Frame.SyncedLines() != 0 || len(res.Warnings) != 0 {
		t.Errorf("synced = %d, warnings = %v", res.Frame.SyncedLines(), res.Warnings)
	}
}

func TestDecodeLeadInAndDrift(t *testing.T) {
	t.Parallel()
	r, err := synth.Generate(synth.Options{
		Rate:     11025,
		Duration: 20 * time.Second,
		LeadIn:   123 * time.Millisecond,
		DriftPPM: 300,
		Noise:    0.05,
		Seed:     3,
	})
	if err != nil {
		t.Fatal(err)
	}

	synced, err := apt.NewDecoder(apt.ProfileStandard).Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(synced.Lines), r.Lines(); got < want {
		t.Errorf("decoded %d lines, want at least %d", got, want)
	}
	for _, start := range synced.Frame.Starts {
		k := int(math.Round((float64(start)/12480 - 0.123) * 2))
		if k < 0 {
			continue
		}
		if want := r.LineStartAt(k, 12480); math.Abs(float64(start)-want) > 3 {
			t.Errorf("start %d is %.1f samples from line %d", start, float64(start)-want, k)
		}
	}

	// Without sync the lines start at fixed intervals from sample 0, so the
	// drift accumulates and the image slants.
	d := apt.NewDecoder(apt.ProfileStandard)
	d.Sync.Enabled = false
	fixed, err := d.Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	last := fixed.Frame.Lines() - 1
	if off := math.Abs(float64(fixed.Frame.Starts[last]) - r.LineStartAt(last, 12480)); off < 100 {
		t.Errorf("unsynced decode is only %.1f samples off on the last line", off)
	}
}

func TestDecodeFFTMatchesDirect(t *testing.T) {
	t.Parallel()
	r := recording30s(t)
	direct, err := apt.NewDecoder(apt.ProfileStandard).Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	d := apt.NewDecoder(apt.ProfileStandard)
	d.Sync.Method = apt.CorrelateFourier
	fft, err := d.Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	if len(direct.Frame.Starts) != len(fft.Frame.Starts) {
		t.Fatalf("fft found %d lines, direct %d", len(fft.Frame.Starts), len(direct.Frame.Starts))
	}
	// Adjacent correlation values can tie when the sync sits between two
	// samples, so allow one sample of disagreement.
	for i := range direct.Frame.Starts {
		if d := direct.Frame.Starts[i] - fft.Frame.Starts[i]; d < -1 || d > 1 {
			t.Errorf("line %d: fft start %d, direct %d", i, fft.Frame.Starts[i], direct.Frame.Starts[i])
		}
	}
}

func TestDecodeFlatSignal(t *testing.T) {
	t.Parallel()
	sig := dsp.Signal{Samples: make([]float32, 5*11025), Rate: 11025}
	res, err := apt.NewDecoder(apt.ProfileStandard).Decode(context.Background(), sig)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 10 {
		t.Fatalf("decoded %d lines, want 10", len(res.Lines))
	}
	var noSync, degenerate bool
	for _, w := range res.Warnings {
		noSync = noSync || errors.Is(w, dsp.ErrNoSync)
		degenerate = degenerate || errors.Is(w, dsp.ErrDegenerate)
	}
	if !noSync || !degenerate {
		t.Errorf("warnings = %v, want no-sync and degenerate", res.Warnings)
	}
	for _, px := range res.Pixels() {
		if px != apt.MidGray {
			t.Fatalf("pixel = %d, want %d", px, apt.MidGray)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()
	res, err := apt.NewDecoder(apt.ProfileStandard).Decode(context.Background(), dsp.Signal{Rate: 11025})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 0 || len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], dsp.ErrDegenerate) {
		t.Errorf("lines = %d, warnings = %v", len(res.Lines), res.Warnings)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	t.Parallel()
	nan := dsp.Signal{Samples: []float32{0, float32(math.NaN()), 0}, Rate: 11025}
	if _, err := apt.NewDecoder(apt.ProfileStandard).Decode(context.Background(), nan); !errors.Is(err, dsp.ErrInvalidSample) {
		t.Errorf("NaN input: err = %v", err)
	}

	p := apt.ProfileStandard
	p.WorkRate = 12000
	if _, err := apt.NewDecoder(p).Decode(context.Background(), dsp.Signal{Samples: []float32{0}, Rate: 11025}); !errors.Is(err, dsp.ErrConfig) {
		t.Errorf("work rate 12000: err = %v", err)
	}

	if _, err := apt.NewDecoder(apt.ProfileStandard).Decode(context.Background(), dsp.Signal{Samples: []float32{0}}); !errors.Is(err, dsp.ErrConfig) {
		t.Errorf("zero input rate: err = %v", err)
	}
}

func TestDecodeCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sig := dsp.Signal{Samples: make([]float32, 11025), Rate: 11025}
	if _, err := apt.NewDecoder(apt.ProfileStandard).Decode(ctx, sig); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type memorySteps struct {
	ids []string
}

func (m *memorySteps) Signal(id string, _ dsp.Signal) error {
	m.ids = append(m.ids, id)
	return nil
}

func (m *memorySteps) Filter(id string, taps dsp.Coefficients) error {
	m.ids = append(m.ids, id)
	return nil
}

func TestDecodeStepsAndProgress(t *testing.T) {
	t.Parallel()
	sig, err := synth.Generate(synth.Options{Rate: 11025, Duration: 3 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	steps := &memorySteps{}
	var stages []apt.Stage
	var last float64
	d := apt.NewDecoder(apt.ProfileStandard)
	d.Steps = steps
	d.Progress = func(s apt.Stage, f float64) {
		if f < last {
			t.Errorf("progress went back from %g to %g", last, f)
		}
		last = f
		stages = append(stages, s)
	}
	if _, err := d.Decode(context.Background(), sig.Signal); err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(steps.ids, apt.Steps) {
		t.Errorf("steps = %v, want %v", steps.ids, apt.Steps)
	}
	want := []apt.Stage{
		apt.StageIdle, apt.StageResampling, apt.StageDemodulating, apt.StageFiltering,
		apt.StageCorrelating, apt.StageFraming, apt.StageMapping, apt.StageDone,
	}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}

func TestDecodeFastProfile(t *testing.T) {
	t.Parallel()
	r := recording30s(t)
	res, err := apt.NewDecoder(apt.ProfileFast).Decode(context.Background(), r.Signal)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) < 59 {
		t.Errorf("decoded %d lines, want about 60", len(res.Lines))
	}
}

func BenchmarkDecode(b *testing.B) {
	r, err := synth.Generate(synth.Options{Rate: 11025, Duration: 10 * time.Second})
	if err != nil {
		b.Fatal(err)
	}
	d := apt.NewDecoder(apt.ProfileStandard)
	for b.Loop() {
		if _, err := d.Decode(context.Background(), r.Signal); err != nil {
			b.Fatal(err)
		}
	}
}
