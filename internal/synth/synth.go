// Package synth generates synthetic APT recordings: a 2400 Hz subcarrier
// amplitude-modulated by lines of sync pulses, space data, a test image and
// telemetry wedges. The decoder tests and the synth command use it in place
// of a real satellite pass.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/dsp"
)

// Options describes the recording to generate.
type Options struct {
	Rate     dsp.Rate
	Duration time.Duration

	// Amplitude is the carrier peak for a white pixel. Zero means 0.8.
	Amplitude float64
	// Noise is the standard deviation of additive gaussian noise.
	Noise float64
	// LeadIn delays the first line start; the recording opens with the
	// tail of the previous line.
	LeadIn time.Duration
	// DriftPPM makes the transmitter's pixel clock run fast (positive) or
	// slow by this many parts per million, slanting an unsynced decode.
	DriftPPM float64
	Seed     uint64

	// Format defaults to apt.DefaultFormat.
	Format *apt.Format
}

// Recording is a generated signal together with its known line timing.
type Recording struct {
	Signal dsp.Signal

	format    apt.Format
	leadIn    float64
	lineSecs  float64
	pixelSecs float64
}

// LineStart returns the time line k begins, in seconds from the start of
// the recording.
func (r Recording) LineStart(k int) float64 {
	return r.leadIn + float64(k)*r.lineSecs
}

// LineStartAt returns the sample index at rate where line k begins.
func (r Recording) LineStartAt(k int, rate dsp.Rate) float64 {
	return r.LineStart(k) * float64(rate)
}

// Lines returns the number of complete lines in the recording.
func (r Recording) Lines() int {
	d := r.Signal.Duration().Seconds() - r.leadIn
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d/r.lineSecs + 1e-9))
}

// Generate builds the recording.
func Generate(opts Options) (Recording, error) {
	if opts.Rate <= 0 {
		return Recording{}, fmt.Errorf("synth: sample rate must be positive, got %d", opts.Rate)
	}
	if opts.Duration < 0 || opts.LeadIn < 0 {
		return Recording{}, fmt.Errorf("synth: negative duration")
	}
	format := apt.DefaultFormat()
	if opts.Format != nil {
		format = *opts.Format
	}
	if err := format.Validate(); err != nil {
		return Recording{}, fmt.Errorf("synth: %w", err)
	}
	amp := opts.Amplitude
	if amp == 0 {
		amp = 0.8
	}

	pixelRate := float64(format.PixelRate) * (1 + opts.DriftPPM*1e-6)
	rec := Recording{
		format:    format,
		leadIn:    opts.LeadIn.Seconds(),
		pixelSecs: 1 / pixelRate,
		lineSecs:  float64(format.LinePixels) / pixelRate,
	}

	var rng *rand.Rand
	if opts.Noise > 0 {
		rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	}

	n := int(opts.Duration.Seconds() * float64(opts.Rate))
	samples := make([]float32, n)
	line := newLineBuilder(format)
	for i := range samples {
		t := float64(i) / float64(opts.Rate)
		u := (t - rec.leadIn) * pixelRate
		p := int(math.Floor(u))
		row := floorDiv(p, format.LinePixels)
		col := p - row*format.LinePixels

		level := 0.05 + 0.9*line.value(row, col)
		v := amp * level * math.Sin(2*math.Pi*format.CarrierHz*t)
		if rng != nil {
			v += opts.Noise * rng.NormFloat64()
		}
		samples[i] = float32(v)
	}
	rec.Signal = dsp.Signal{Samples: samples, Rate: opts.Rate}
	return rec, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// lineBuilder returns the brightness, 0 to 1, of any pixel of the test
// pattern.
type lineBuilder struct {
	width   int
	channel int
	syncA   []float64
	syncB   []float64
}

func newLineBuilder(f apt.Format) *lineBuilder {
	lb := &lineBuilder{width: f.LinePixels, channel: f.LinePixels / 2}

	for _, p := range f.SyncA {
		for range p.Pixels {
			lb.syncA = append(lb.syncA, levelValue(p.Level))
		}
	}
	for range 7 {
		lb.syncB = append(lb.syncB, 1, 1, 1, 0, 0)
	}
	return lb
}

func levelValue(l apt.Level) float64 {
	if l == apt.White {
		return 1
	}
	return 0
}

func (lb *lineBuilder) value(row, col int) float64 {
	if col < lb.channel {
		return lb.channelValue(row, col, lb.syncA, 0.05, func(x float64) float64 {
			return 0.5 + 0.4*math.Sin(2*math.Pi*(x*3+float64(row)/40))
		})
	}
	return lb.channelValue(row, col-lb.channel, lb.syncB, 0.95, func(x float64) float64 {
		return x
	})
}

// channelValue lays out one channel: sync, space data, image, telemetry.
// The space data carries a minute marker every 120 lines.
func (lb *lineBuilder) channelValue(row, col int, sync []float64, space float64, image func(x float64) float64) float64 {
	syncEnd := min(apt.SyncPixels, lb.channel)
	spaceEnd := min(syncEnd+apt.SpacePixels, lb.channel)
	imageEnd := min(spaceEnd+apt.ImagePixels, lb.channel)
	switch {
	case col < syncEnd:
		if col < len(sync) {
			return sync[col]
		}
		return 0
	case col < spaceEnd:
		if row%120 < 2 {
			return 1 - space
		}
		return space
	case col < imageEnd:
		return image(float64(col-spaceEnd) / float64(apt.ImagePixels))
	default:
		wedge := (row / 8) % 16
		return float64(wedge) / 15
	}
}
