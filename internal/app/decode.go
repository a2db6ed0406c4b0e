package app

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/ctl"
	"github.com/large-farva/aptdec/internal/imageio"
	"github.com/large-farva/aptdec/internal/wavio"
)

// DecodeOptions are the flags of `aptdec decode`. Empty fields fall back
// to the configuration.
type DecodeOptions struct {
	Input  string
	Output string // defaults to Input with a .png extension

	Profile  string
	NoSync   bool
	Method   string
	StepsDir string

	Rotate    string // yes, no or auto
	Satellite string
	Start     time.Time // recording start; zero means file time minus duration
	TLEFile   string

	// Remote decodes on an aptdec server instead of locally.
	Remote string
}

// Decode turns a WAV recording into a PNG image.
func Decode(ctx context.Context, env Env, opts DecodeOptions) error {
	if opts.Input == "" {
		return usageError("decode needs an input WAV file")
	}
	if opts.Output == "" {
		opts.Output = replaceExt(opts.Input, ".png")
	}
	if opts.Profile == "" {
		opts.Profile = env.Cfg.Decode.Profile
	}
	if opts.Rotate == "" {
		opts.Rotate = env.Cfg.Decode.Rotate
	}
	switch opts.Rotate {
	case "yes", "no":
	case "auto":
		if opts.Satellite == "" {
			return usageError("--rotate auto needs --satellite")
		}
	default:
		return usageError("--rotate must be yes, no or auto, got %q", opts.Rotate)
	}

	if opts.Remote != "" {
		return decodeRemote(ctx, env, opts)
	}

	log := env.logger()
	profile, err := env.Cfg.Profile(opts.Profile)
	if err != nil {
		return usageError("%v", err)
	}
	sc, err := env.Cfg.SyncSettings()
	if err != nil {
		return err
	}
	if opts.NoSync {
		sc.Enabled = false
	}
	if opts.Method != "" {
		if sc.Method, err = apt.ParseCorrelationMethod(opts.Method); err != nil {
			return usageError("%v", err)
		}
	}

	sig, info, err := wavio.ReadFile(opts.Input)
	if err != nil {
		return err
	}
	log.Info("loaded recording", "path", opts.Input, "rate", int(info.Rate), "channels", info.Channels, "bits", info.BitDepth, "seconds", sig.Duration().Seconds())

	d := apt.NewDecoder(profile)
	d.Sync = sc
	d.Workers = env.Cfg.Workers()
	d.Log = log
	if opts.StepsDir != "" {
		steps, err := wavio.NewStepExporter(opts.StepsDir, log)
		if err != nil {
			return err
		}
		d.Steps = steps
	}

	res, err := d.Decode(ctx, sig)
	if err != nil {
		return fmt.Errorf("decode %s: %w", opts.Input, err)
	}
	for _, w := range res.Warnings {
		log.Warn("decode warning", "err", w)
	}
	if len(res.Lines) == 0 {
		return fmt.Errorf("decode %s: recording is too short to hold a single line", opts.Input)
	}

	rotate, err := shouldRotate(ctx, env, opts, sig.Duration())
	if err != nil {
		return err
	}
	lines := res.Lines
	if rotate {
		if lines, err = imageio.Rotate(lines, apt.ChannelPixels); err != nil {
			return err
		}
	}
	if err := imageio.WriteFile(opts.Output, lines); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout(), "wrote %s: %d lines (%d synced)%s\n", opts.Output, len(lines), res.Frame.SyncedLines(), rotatedNote(rotate))
	return nil
}

func rotatedNote(rotated bool) string {
	if rotated {
		return ", rotated"
	}
	return ""
}

func decodeRemote(ctx context.Context, env Env, opts DecodeOptions) error {
	if opts.Rotate == "auto" || opts.StepsDir != "" {
		return usageError("--remote supports neither --rotate auto nor --wav-steps")
	}
	f, err := os.Open(opts.Input)
	if err != nil {
		return err
	}
	defer f.Close()

	q := url.Values{}
	q.Set("profile", opts.Profile)
	q.Set("rotate", strconv.FormatBool(opts.Rotate == "yes"))
	if opts.NoSync {
		q.Set("sync", "false")
	}
	if opts.Method != "" {
		q.Set("method", opts.Method)
	}
	res, err := ctl.NewClient(opts.Remote).Decode(ctx, f, q)
	if err != nil {
		return fmt.Errorf("remote decode: %w", err)
	}
	if err := os.WriteFile(opts.Output, res.PNG, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout(), "wrote %s: %s\n", opts.Output, res.Summary())
	return nil
}
