package app

import (
	"fmt"
	"time"

	"github.com/large-farva/aptdec/internal/dsp"
	"github.com/large-farva/aptdec/internal/synth"
	"github.com/large-farva/aptdec/internal/wavio"
)

// SynthOptions are the flags of `aptdec synth`.
type SynthOptions struct {
	Output   string
	Rate     int
	Duration time.Duration
	Noise    float64
	LeadIn   time.Duration
	DriftPPM float64
	Seed     uint64
}

// Synth writes a synthetic APT recording, handy for trying the decoder
// without a receiver.
func Synth(env Env, opts SynthOptions) error {
	if opts.Output == "" {
		return usageError("synth needs an output file")
	}
	if opts.Duration <= 0 {
		return usageError("--duration must be positive")
	}
	rec, err := synth.Generate(synth.Options{
		Rate:     dsp.Rate(opts.Rate),
		Duration: opts.Duration,
		Noise:    opts.Noise,
		LeadIn:   opts.LeadIn,
		DriftPPM: opts.DriftPPM,
		Seed:     opts.Seed,
	})
	if err != nil {
		return usageError("%v", err)
	}
	if err := wavio.WriteFile(opts.Output, rec.Signal); err != nil {
		return err
	}
	env.logger().Debug("synthesised", "lines", rec.Lines(), "samples", rec.Signal.Len())
	fmt.Fprintf(env.stdout(), "wrote %s: %s at %d Hz, %d lines\n", opts.Output, opts.Duration, opts.Rate, rec.Lines())
	return nil
}
