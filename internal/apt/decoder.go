package apt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/large-farva/aptdec/internal/dsp"
)

// Stage names a step of the decoding pipeline. The values double as the
// state strings reported to clients.
type Stage string

const (
	StageIdle         Stage = "IDLE"
	StageResampling   Stage = "RESAMPLING"
	StageDemodulating Stage = "DEMODULATING"
	StageFiltering    Stage = "FILTERING"
	StageCorrelating  Stage = "CORRELATING"
	StageFraming      Stage = "FRAMING"
	StageMapping      Stage = "MAPPING"
	StageDone         Stage = "DONE"
)

// Identifiers of the intermediate results handed to a StepSink, in the
// order they are produced.
const (
	StepInput             = "input"
	StepResampleFilter    = "resample_filter"
	StepResampleDecimated = "resample_decimated"
	StepDemodulation      = "demodulation_result"
	StepFilterFilter      = "filter_filter"
	StepFilterResult      = "filter_result"
	StepSyncCorrelation   = "sync_correlation"
	StepSyncResult        = "sync_result"
	StepMapped            = "mapped"
)

// Steps lists every step id in production order.
var Steps = []string{
	StepInput, StepResampleFilter, StepResampleDecimated, StepDemodulation,
	StepFilterFilter, StepFilterResult, StepSyncCorrelation, StepSyncResult,
	StepMapped,
}

// StepSink receives intermediate signals and filters while decoding, for
// inspection. A non-nil error aborts the decode.
type StepSink interface {
	Signal(id string, sig dsp.Signal) error
	Filter(id string, taps dsp.Coefficients) error
}

// SyncConfig controls line alignment. Spacing and tolerance are fractions
// of a line.
type SyncConfig struct {
	Enabled bool
	Method  CorrelationMethod

	// MinPeakSpacing is the closest two accepted sync peaks may be.
	MinPeakSpacing float64
	// PeakTolerance is how far a peak may sit from the expected line start
	// and still be used as that line's start.
	PeakTolerance float64
	// PeakThreshold drops peaks weaker than this fraction of the 90th
	// percentile peak strength.
	PeakThreshold float64
}

// DefaultSync returns the sync settings used when none are configured.
func DefaultSync() SyncConfig {
	return SyncConfig{
		Enabled:        true,
		Method:         CorrelateDirect,
		MinPeakSpacing: 0.5,
		PeakTolerance:  0.02,
		PeakThreshold:  0.5,
	}
}

// Validate checks the fractions.
func (s SyncConfig) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"min_peak_spacing", s.MinPeakSpacing},
		{"peak_tolerance", s.PeakTolerance},
		{"peak_threshold", s.PeakThreshold},
	}
	for _, c := range checks {
		if !(c.value > 0 && c.value < 1) {
			return configError(c.name, c.value, "must lie strictly between 0 and 1")
		}
	}
	if s.Method != CorrelateDirect && s.Method != CorrelateFourier {
		return configError("sync_method", float64(s.Method), "unknown correlation method")
	}
	return nil
}

// Line is one decoded image line, channel A then channel B.
type Line []uint8

// Result is the outcome of a decode.
type Result struct {
	Lines []Line

	// Frame holds the line starts in samples at WorkRate.
	Frame    Frame
	WorkRate dsp.Rate
	Peaks    int

	// Warnings are non-fatal conditions (dsp.KindNoSync,
	// dsp.KindDegenerate) met while producing Lines.
	Warnings []error
}

// Pixels returns all lines as one buffer.
func (r *Result) Pixels() []uint8 {
	if len(r.Lines) == 0 {
		return nil
	}
	out := make([]uint8, 0, len(r.Lines)*len(r.Lines[0]))
	for _, l := range r.Lines {
		out = append(out, l...)
	}
	return out
}

// Decoder runs the whole pipeline on a recording. The zero value is not
// usable; start from NewDecoder or fill Format, Profile and Sync.
type Decoder struct {
	Format  Format
	Profile Profile
	Sync    SyncConfig

	// Workers is handed to the resampler and filters.
	Workers int
	// Cache memoises filter designs across decodes. May be nil.
	Cache *dsp.FilterCache

	Log      *slog.Logger
	Steps    StepSink
	Progress func(stage Stage, fraction float64)
}

// NewDecoder returns a decoder for the default format with the given
// profile and default sync settings.
func NewDecoder(p Profile) *Decoder {
	return &Decoder{
		Format:  DefaultFormat(),
		Profile: p,
		Sync:    DefaultSync(),
		Cache:   dsp.NewFilterCache(),
	}
}

func (d *Decoder) logger() *slog.Logger {
	if d.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Log
}

func (d *Decoder) stage(s Stage, fraction float64) {
	if s != StageIdle && s != StageDone {
		d.logger().Info("decode stage", "stage", string(s), "progress", fraction)
	}
	if d.Progress != nil {
		d.Progress(s, fraction)
	}
}

func (d *Decoder) signalStep(id string, sig dsp.Signal) error {
	if d.Steps == nil {
		return nil
	}
	if err := d.Steps.Signal(id, sig); err != nil {
		return fmt.Errorf("step %s: %w", id, err)
	}
	return nil
}

func (d *Decoder) filterStep(id string, taps dsp.Coefficients) error {
	if d.Steps == nil {
		return nil
	}
	if err := d.Steps.Filter(id, taps); err != nil {
		return fmt.Errorf("step %s: %w", id, err)
	}
	return nil
}

// validate checks all parameters before any work starts.
func (d *Decoder) validate(in dsp.Rate) error {
	if err := d.Format.Validate(); err != nil {
		return err
	}
	if err := d.Profile.Validate(d.Format); err != nil {
		return err
	}
	if d.Sync.Enabled {
		if err := d.Sync.Validate(); err != nil {
			return err
		}
	}
	if in <= 0 {
		return configError("input_rate", float64(in), "sample rate must be positive")
	}
	return nil
}

// resampleSpec returns the filter used on the way to the work rate,
// referenced to the input rate. The cutoff is pulled below the Nyquist
// frequency of the slower of the two rates when the profile asks for more.
func (d *Decoder) resampleSpec(in dsp.Rate) dsp.FilterSpec {
	p := d.Profile
	edge := float64(min(in, p.WorkRate)) / 2
	cutoff := min(p.ResampleCutoffHz, edge-p.ResampleTransitionHz/2)
	return dsp.FilterSpec{
		Response:   dsp.LowpassDCRemoval,
		Cutoff:     dsp.FreqHz(cutoff, in),
		Transition: dsp.FreqHz(p.ResampleTransitionHz, in),
		Atten:      p.ResampleAtten,
	}
}

// Decode turns a recording into image lines.
//
// Configuration errors and non-finite samples abort with an error before
// any processing. Missing sync and flat signals still produce lines and are
// reported in Result.Warnings. ctx is checked between stages.
func (d *Decoder) Decode(ctx context.Context, sig dsp.Signal) (*Result, error) {
	if err := d.validate(sig.Rate); err != nil {
		return nil, err
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	log := d.logger()
	work := d.Profile.WorkRate
	res := &Result{WorkRate: work}

	d.stage(StageIdle, 0)
	if sig.Len() == 0 {
		res.Warnings = append(res.Warnings, &dsp.Error{Kind: dsp.KindDegenerate, Msg: "empty signal"})
		d.stage(StageDone, 1)
		return res, nil
	}

	lineLen, err := d.Format.LineSamples(work)
	if err != nil {
		return nil, err
	}
	rs := &dsp.Resampler{Cache: d.Cache, Workers: d.Workers, Log: log}

	if err := d.signalStep(StepInput, sig); err != nil {
		return nil, err
	}

	// Resample to the work rate.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.stage(StageResampling, 0.1)
	spec := d.resampleSpec(sig.Rate)
	if d.Steps != nil {
		taps, err := rs.FilterFor(sig.Rate, work, spec)
		if err != nil {
			return nil, err
		}
		if err := d.filterStep(StepResampleFilter, taps); err != nil {
			return nil, err
		}
	}
	x, err := rs.ResampleWithFilter(sig, work, spec)
	if err != nil {
		return nil, fmt.Errorf("resample to %v: %w", work, err)
	}
	if err := d.signalStep(StepResampleDecimated, x); err != nil {
		return nil, err
	}

	// Demodulate.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.stage(StageDemodulating, 0.4)
	x, err = dsp.Demodulate(x, dsp.FreqHz(d.Format.CarrierHz, work))
	if err != nil {
		return nil, fmt.Errorf("demodulate: %w", err)
	}
	if err := d.signalStep(StepDemodulation, x); err != nil {
		return nil, err
	}

	// Keep the envelope below half the pixel rate.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.stage(StageFiltering, 0.42)
	cutoff := dsp.FreqPiRad(float64(d.Format.PixelRate) / float64(work))
	lp := dsp.FilterSpec{
		Response:   dsp.Lowpass,
		Cutoff:     cutoff,
		Transition: cutoff.Div(5),
		Atten:      d.Profile.DemodAtten,
	}
	if d.Steps != nil {
		taps, err := d.Cache.Design(lp)
		if err != nil {
			return nil, err
		}
		if err := d.filterStep(StepFilterFilter, taps); err != nil {
			return nil, err
		}
	}
	x, err = rs.Filter(x, lp)
	if err != nil {
		return nil, fmt.Errorf("envelope filter: %w", err)
	}
	if err := d.signalStep(StepFilterResult, x); err != nil {
		return nil, err
	}

	// Find the lines.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.stage(StageCorrelating, 0.5)
	var frame Frame
	if d.Sync.Enabled {
		ref, err := SyncReference(d.Format, work)
		if err != nil {
			return nil, err
		}
		var corr []float32
		if d.Sync.Method == CorrelateFourier {
			corr = CorrelateFFT(x.Samples, ref)
		} else {
			corr = Correlate(x.Samples, ref)
		}
		if err := d.signalStep(StepSyncCorrelation, dsp.Signal{Samples: corr, Rate: work}); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.stage(StageFraming, 0.7)
		spacing := int(d.Sync.MinPeakSpacing * float64(lineLen))
		tolerance := int(d.Sync.PeakTolerance * float64(lineLen))
		peaks := FindPeaks(corr, spacing, d.Sync.PeakThreshold)
		res.Peaks = len(peaks)
		frame = FrameLines(x.Len(), peaks, lineLen, tolerance)
		log.Debug("sync peaks", "found", len(peaks), "lines", frame.Lines(), "synced", frame.SyncedLines())
		if frame.NoSync {
			log.Warn("no sync frames found, cutting lines from the start of the signal")
			res.Warnings = append(res.Warnings, &dsp.Error{Kind: dsp.KindNoSync, Msg: "no sync frames found, image is not aligned"})
		}
	} else {
		if err := d.signalStep(StepSyncCorrelation, dsp.Signal{Rate: work}); err != nil {
			return nil, err
		}
		d.stage(StageFraming, 0.7)
		frame = FixedFrame(x.Len(), lineLen)
	}
	res.Frame = frame
	if frame.Lines() == 0 {
		res.Warnings = append(res.Warnings, &dsp.Error{Kind: dsp.KindDegenerate, Msg: "signal is shorter than one line"})
	}

	aligned := make([]float32, 0, frame.Lines()*lineLen)
	for _, start := range frame.Starts {
		aligned = append(aligned, x.Samples[start:start+lineLen]...)
	}
	x = dsp.Signal{Samples: aligned, Rate: work}
	if err := d.signalStep(StepSyncResult, x); err != nil {
		return nil, err
	}

	// One sample per pixel. The envelope filter already removed everything
	// above the pixel Nyquist frequency.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.stage(StageMapping, 0.9)
	x, err = rs.ResampleWithFilter(x, d.Format.PixelRate, dsp.FilterSpec{Response: dsp.Identity})
	if err != nil {
		return nil, fmt.Errorf("resample to %v: %w", d.Format.PixelRate, err)
	}
	pixels, degenerate := MapPixels(x.Samples)
	if degenerate && len(pixels) > 0 {
		res.Warnings = append(res.Warnings, &dsp.Error{Kind: dsp.KindDegenerate, Msg: "signal has no amplitude range, image is flat gray"})
	}
	mapped := make([]float32, len(pixels))
	for i, p := range pixels {
		mapped[i] = float32(p)
	}
	if err := d.signalStep(StepMapped, dsp.Signal{Samples: mapped, Rate: d.Format.PixelRate}); err != nil {
		return nil, err
	}

	w := d.Format.LinePixels
	for i := 0; i+w <= len(pixels); i += w {
		res.Lines = append(res.Lines, Line(pixels[i:i+w:i+w]))
	}
	log.Info("decoded", "lines", len(res.Lines), "synced", frame.SyncedLines(), "warnings", len(res.Warnings))
	d.stage(StageDone, 1)
	return res, nil
}
