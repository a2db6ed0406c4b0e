// Package apt turns a recorded NOAA APT signal into image lines. It finds
// the channel A sync frames by cross-correlation, cuts the demodulated
// signal into lines at those positions and maps amplitudes to 8-bit pixels.
package apt

import (
	"fmt"

	"github.com/large-farva/aptdec/internal/dsp"
)

// Pixel layout of one channel. A line carries channel A followed by
// channel B, each laid out as sync, space data, image, telemetry.
const (
	SyncPixels      = 39
	SpacePixels     = 47
	ImagePixels     = 909
	TelemetryPixels = 45
	ChannelPixels   = SyncPixels + SpacePixels + ImagePixels + TelemetryPixels
	LinePixels      = 2 * ChannelPixels
)

// Level is the nominal brightness of a sync pulse.
type Level int8

const (
	Black Level = -1
	White Level = 1
)

// Pulse is a run of Pixels pixels at one level.
type Pulse struct {
	Level  Level
	Pixels int
}

// Format holds the transmission constants the decoder depends on. Tests
// substitute their own values; DefaultFormat is what the satellites send.
type Format struct {
	CarrierHz  float64
	PixelRate  dsp.Rate
	LinePixels int
	SyncA      []Pulse
}

// DefaultFormat returns the NOAA APT format: a 2400 Hz AM subcarrier, 4160
// pixels per second, two lines per second and a sync A frame of seven
// 2-pixel black/white cycles followed by 8 black pixels.
func DefaultFormat() Format {
	sync := make([]Pulse, 0, 15)
	for range 7 {
		sync = append(sync, Pulse{Black, 2}, Pulse{White, 2})
	}
	sync = append(sync, Pulse{Black, 8})
	return Format{
		CarrierHz:  2400,
		PixelRate:  4160,
		LinePixels: LinePixels,
		SyncA:      sync,
	}
}

// Validate checks that the format is usable.
func (f Format) Validate() error {
	if f.PixelRate <= 0 {
		return configError("pixel_rate", float64(f.PixelRate), "pixel rate must be positive")
	}
	if f.LinePixels <= 0 {
		return configError("line_pixels", float64(f.LinePixels), "line width must be positive")
	}
	if !(f.CarrierHz > 0) {
		return configError("carrier", f.CarrierHz, "carrier frequency must be positive")
	}
	if len(f.SyncA) == 0 {
		return configError("sync", 0, "sync pattern is empty")
	}
	for _, p := range f.SyncA {
		if p.Pixels <= 0 || (p.Level != Black && p.Level != White) {
			return configError("sync", float64(p.Pixels), "sync pulses need a level and a positive width")
		}
	}
	return nil
}

// SyncPixelsTotal returns the width of the sync pattern in pixels.
func (f Format) SyncPixelsTotal() int {
	n := 0
	for _, p := range f.SyncA {
		n += p.Pixels
	}
	return n
}

// LineRate returns lines per second.
func (f Format) LineRate() float64 {
	return float64(f.PixelRate) / float64(f.LinePixels)
}

// SamplesPerPixel returns how many samples at rate make up one pixel. The
// rate must be a positive multiple of the pixel rate.
func (f Format) SamplesPerPixel(rate dsp.Rate) (int, error) {
	if rate <= 0 || f.PixelRate <= 0 || rate%f.PixelRate != 0 {
		return 0, configError("work_rate", float64(rate),
			fmt.Sprintf("work rate must be a positive multiple of %d", f.PixelRate))
	}
	return int(rate / f.PixelRate), nil
}

// LineSamples returns the number of samples in one line at rate.
func (f Format) LineSamples(rate dsp.Rate) (int, error) {
	spp, err := f.SamplesPerPixel(rate)
	if err != nil {
		return 0, err
	}
	return spp * f.LinePixels, nil
}

func configError(param string, value float64, msg string) error {
	return &dsp.Error{Kind: dsp.KindConfig, Param: param, Value: value, Msg: msg}
}
