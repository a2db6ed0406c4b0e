package app

import (
	"context"
	"fmt"
	"os"

	"github.com/large-farva/aptdec/internal/dsp"
	"github.com/large-farva/aptdec/internal/wavio"
)

// ResampleOptions are the flags of `aptdec resample`.
type ResampleOptions struct {
	Input   string
	Output  string
	Rate    int
	Profile string
}

// Resample converts a WAV file to another sample rate with the profile's
// WAV filter settings, writes 16-bit PCM and copies the input's
// modification time so tools that date recordings by file time keep
// working.
func Resample(ctx context.Context, env Env, opts ResampleOptions) error {
	if opts.Input == "" || opts.Output == "" {
		return usageError("resample needs an input and an output file")
	}
	if opts.Rate <= 0 {
		return usageError("--rate must be positive, got %d", opts.Rate)
	}
	if opts.Profile == "" {
		opts.Profile = env.Cfg.Decode.Profile
	}
	profile, err := env.Cfg.Profile(opts.Profile)
	if err != nil {
		return usageError("%v", err)
	}
	log := env.logger()

	sig, _, err := wavio.ReadFile(opts.Input)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rs := &dsp.Resampler{Cache: dsp.NewFilterCache(), Workers: env.Cfg.Workers(), Log: log}
	out, err := rs.Resample(sig, dsp.Rate(opts.Rate), profile.WavAtten, dsp.FreqPiRad(profile.WavTransition))
	if err != nil {
		return fmt.Errorf("resample %s: %w", opts.Input, err)
	}
	if err := wavio.WriteFile(opts.Output, out); err != nil {
		return err
	}

	fi, err := os.Stat(opts.Input)
	if err != nil {
		return err
	}
	if err := os.Chtimes(opts.Output, fi.ModTime(), fi.ModTime()); err != nil {
		log.Warn("could not copy modification time", "err", err)
	}
	fmt.Fprintf(env.stdout(), "wrote %s: %d samples at %d Hz\n", opts.Output, out.Len(), opts.Rate)
	return nil
}
