// Package wavio reads and writes mono WAV recordings as dsp signals.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/large-farva/aptdec/internal/dsp"
)

// WAV format tags.
const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xfffe
)

// ErrNotWAV is returned for input that is not a RIFF/WAVE file.
var ErrNotWAV = errors.New("not a WAV file")

// Info describes the file a signal was read from.
type Info struct {
	Rate     dsp.Rate
	Channels int
	BitDepth int
	Float    bool
	Frames   int
}

// Read decodes a WAV stream and returns its first channel normalised to
// [-1, 1). 8, 16, 24 and 32-bit integer PCM and 32-bit float are accepted.
func Read(r io.ReadSeeker) (dsp.Signal, Info, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return dsp.Signal{}, Info{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if d.NumChans < 1 || d.SampleRate == 0 {
		return dsp.Signal{}, Info{}, ErrNotWAV
	}

	info := Info{
		Rate:     dsp.Rate(d.SampleRate),
		Channels: int(d.NumChans),
		BitDepth: int(d.BitDepth),
	}
	switch d.WavAudioFormat {
	case formatPCM, formatExtensible:
	case formatFloat:
		info.Float = true
		if d.BitDepth != 32 {
			return dsp.Signal{}, info, fmt.Errorf("unsupported float WAV with %d bits", d.BitDepth)
		}
	default:
		return dsp.Signal{}, info, fmt.Errorf("unsupported WAV format tag %#x", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return dsp.Signal{}, info, fmt.Errorf("read PCM data: %w", err)
	}

	ch := info.Channels
	info.Frames = len(buf.Data) / ch
	samples := make([]float32, info.Frames)
	conv := converter(info)
	for i := range samples {
		samples[i] = conv(buf.Data[i*ch])
	}
	return dsp.Signal{Samples: samples, Rate: info.Rate}, info, nil
}

func converter(info Info) func(int) float32 {
	if info.Float {
		return func(v int) float32 { return math.Float32frombits(uint32(v)) }
	}
	if info.BitDepth == 8 {
		return func(v int) float32 { return float32(v-128) / 128 }
	}
	scale := 1 / float64(int64(1)<<(info.BitDepth-1))
	return func(v int) float32 { return float32(float64(v) * scale) }
}

// ReadFile opens and decodes a WAV file.
func ReadFile(path string) (dsp.Signal, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return dsp.Signal{}, Info{}, err
	}
	defer f.Close()

	sig, info, err := Read(f)
	if err != nil {
		return dsp.Signal{}, info, fmt.Errorf("%s: %w", path, err)
	}
	return sig, info, nil
}

// Write encodes sig as mono 16-bit PCM. Samples are clamped to [-1, 1].
func Write(w io.WriteSeeker, sig dsp.Signal) error {
	return write(w, sig.Samples, int(sig.Rate), 1)
}

// WriteNormalized encodes samples as mono 16-bit PCM after scaling them so
// the largest magnitude reaches full range. rate may be any positive value;
// filter coefficients are written at 1 Hz.
func WriteNormalized(w io.WriteSeeker, samples []float32, rate int) error {
	var peak float64
	for _, v := range samples {
		peak = max(peak, math.Abs(float64(v)))
	}
	scale := 1.0
	if peak > 0 {
		scale = 1 / peak
	}
	return write(w, samples, rate, scale)
}

func write(w io.WriteSeeker, samples []float32, rate int, scale float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %d", rate)
	}
	enc := wav.NewEncoder(w, rate, 16, 1, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, v := range samples {
		x := min(max(float64(v)*scale, -1), 1)
		buf.Data[i] = int(math.Round(x * math.MaxInt16))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// WriteFile writes sig to path as 16-bit PCM, replacing any existing file.
func WriteFile(path string, sig dsp.Signal) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, sig); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
