// Aptdec decodes NOAA APT weather satellite recordings into images. It
// runs one-shot decodes from WAV files, serves decodes over HTTP with a
// live event stream, and talks to a running server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/aptdec/internal/app"
	"github.com/large-farva/aptdec/internal/config"
	"github.com/large-farva/aptdec/internal/ctl"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config TOML (default: user config dir)")
		debug      = pflag.BoolP("debug", "d", false, "Log debug messages")
		quiet      = pflag.BoolP("quiet", "q", false, "Log warnings and errors only")
	)
	pflag.Usage = usage

	// Stop parsing global flags at the command name so command flags reach
	// their own flag set.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: config:", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.Logging.Level)
	switch {
	case *debug:
		level = slog.LevelDebug
	case *quiet:
		level = slog.LevelWarn
	}
	env := app.Env{Cfg: cfg, Log: app.NewLogger(os.Stderr, level), Stdout: os.Stdout}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "decode":
		err = runDecode(ctx, env, subArgs)
	case "resample":
		err = runResample(ctx, env, subArgs)
	case "synth":
		err = runSynth(env, subArgs)
	case "serve":
		fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		bind := fs.String("bind", cfg.Server.Bind, "HTTP bind address")
		if err = parseArgs(fs, subArgs); err == nil {
			err = app.Serve(ctx, env, *bind)
		}
	case "status":
		fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
		host := fs.StringP("host", "H", "http://"+cfg.Server.Bind, "aptdec server URL")
		jsonOut := fs.Bool("json", false, "Output raw JSON instead of formatted text")
		if err = parseArgs(fs, subArgs); err == nil {
			err = ctl.NewClient(*host).Status(ctx, os.Stdout, *jsonOut)
		}
	case "watch":
		fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		host := fs.StringP("host", "H", "http://"+cfg.Server.Bind, "aptdec server URL")
		var opts ctl.WatchOptions
		fs.StringSliceVar(&opts.Filter, "filter", nil, "Event types to show (e.g. --filter progress,log)")
		fs.BoolVar(&opts.JSON, "json", false, "Output raw JSON per event")
		if err = parseArgs(fs, subArgs); err == nil {
			err = ctl.NewClient(*host).Watch(ctx, os.Stdout, opts)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
		}
	case "version":
		for _, k := range []string{"version", "commit", "built_at", "go_version"} {
			fmt.Printf("%-11s %s\n", k, app.VersionInfo()[k])
		}
	case "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	switch {
	case err == nil:
	case errors.Is(err, pflag.ErrHelp):
	case app.IsUsage(err) || errors.Is(err, errArgs):
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// errArgs marks command lines that could not be parsed.
var errArgs = errors.New("bad arguments")

func parseArgs(fs *pflag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		return fmt.Errorf("%w: %v", errArgs, err)
	}
	return err
}

func runDecode(ctx context.Context, env app.Env, args []string) error {
	var (
		opts  app.DecodeOptions
		start string
	)
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	fs.StringVarP(&opts.Output, "output", "o", "", "Output PNG (default: input with .png)")
	fs.StringVarP(&opts.Profile, "profile", "p", "", "Decoding profile (standard, fast or a configured one)")
	fs.BoolVar(&opts.NoSync, "no-sync", false, "Skip sync detection and cut lines at fixed intervals")
	fs.StringVar(&opts.Method, "method", "", "Sync correlation method (direct or fft)")
	fs.StringVar(&opts.StepsDir, "wav-steps", "", "Write every intermediate step as WAV into this directory")
	fs.StringVar(&opts.Rotate, "rotate", "", "Rotate the image: yes, no or auto")
	fs.StringVar(&opts.Satellite, "satellite", "", "Satellite for --rotate auto (e.g. NOAA-19)")
	fs.StringVar(&start, "start", "", "Recording start, RFC3339 (default: file time minus duration)")
	fs.StringVar(&opts.TLEFile, "tle", "", "TLE file for --rotate auto")
	fs.StringVar(&opts.Remote, "remote", "", "Decode on an aptdec server at this URL")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: decode takes exactly one input file", errArgs)
	}
	opts.Input = fs.Arg(0)
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return fmt.Errorf("%w: --start: %v", errArgs, err)
		}
		opts.Start = t
	}
	return app.Decode(ctx, env, opts)
}

func runResample(ctx context.Context, env app.Env, args []string) error {
	var opts app.ResampleOptions
	fs := pflag.NewFlagSet("resample", pflag.ContinueOnError)
	fs.IntVarP(&opts.Rate, "rate", "r", 0, "Target sample rate in Hz")
	fs.StringVarP(&opts.Output, "output", "o", "", "Output WAV")
	fs.StringVarP(&opts.Profile, "profile", "p", "", "Profile whose WAV filter settings are used")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: resample takes exactly one input file", errArgs)
	}
	opts.Input = fs.Arg(0)
	return app.Resample(ctx, env, opts)
}

func runSynth(env app.Env, args []string) error {
	var opts app.SynthOptions
	fs := pflag.NewFlagSet("synth", pflag.ContinueOnError)
	fs.StringVarP(&opts.Output, "output", "o", "synth.wav", "Output WAV")
	fs.IntVar(&opts.Rate, "rate", 11025, "Sample rate in Hz")
	fs.DurationVar(&opts.Duration, "duration", 30*time.Second, "Recording length")
	fs.Float64Var(&opts.Noise, "noise", 0, "Gaussian noise standard deviation")
	fs.DurationVar(&opts.LeadIn, "lead-in", 0, "Silence before the first line")
	fs.Float64Var(&opts.DriftPPM, "drift-ppm", 0, "Clock drift of the transmitter in ppm")
	fs.Uint64Var(&opts.Seed, "seed", 1, "Noise seed")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	return app.Synth(env, opts)
}

func usage() {
	fmt.Fprint(os.Stderr, `
  aptdec, NOAA APT weather satellite decoder

  USAGE
    aptdec [flags] <command> [command-flags] [args]

  COMMANDS
    decode FILE.wav    Decode a recording into a PNG image
    resample FILE.wav  Convert a WAV file to another sample rate
    synth              Write a synthetic APT recording
    serve              Run the HTTP decode service
    status             Show the state of a running server
    watch              Stream live events from a server (Ctrl-C to stop)
    version            Show build information

  GLOBAL FLAGS
    -c, --config PATH   Config TOML (default: <user config dir>/aptdec/aptdec.toml)
    -d, --debug         Log debug messages
    -q, --quiet         Log warnings and errors only

  COMMAND FLAGS
    decode:
        -o, --output PATH      Output PNG (default: input with .png)
        -p, --profile NAME     Decoding profile (default from config)
            --no-sync          Cut lines at fixed intervals
            --method M         Sync correlation: direct or fft
            --wav-steps DIR    Export every intermediate step as WAV
            --rotate MODE      yes, no or auto
            --satellite NAME   Satellite for --rotate auto
            --start TIME       Recording start (RFC3339)
            --tle PATH         TLE file for --rotate auto
            --remote URL       Decode on a running server

    resample:
        -r, --rate HZ          Target sample rate
        -o, --output PATH      Output WAV
        -p, --profile NAME     Profile whose WAV filter is used

    synth:
        -o, --output PATH      Output WAV (default: synth.wav)
            --rate HZ          Sample rate (default: 11025)
            --duration D       Length (default: 30s)
            --noise SIGMA      Noise standard deviation
            --lead-in D        Silence before the first line
            --drift-ppm PPM    Transmitter clock drift
            --seed N           Noise seed

    serve:
            --bind ADDR        HTTP bind address (default from config)

    status, watch:
        -H, --host URL         Server URL (default from config bind)
            --json             Raw JSON output
            --filter TYPES     Event types to show in watch

  EXAMPLES
    aptdec decode noaa19.wav
    aptdec decode -p fast --rotate yes -o pass.png noaa19.wav
    aptdec decode --rotate auto --satellite NOAA-19 noaa19.wav
    aptdec resample -r 11025 -o small.wav big.wav
    aptdec synth --duration 1m --noise 0.05 -o test.wav
    aptdec serve --bind 0.0.0.0:8080
    aptdec watch --filter progress,decode_done

`)
}
