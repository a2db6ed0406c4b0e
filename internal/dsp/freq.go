// Package dsp holds the numeric core of the APT decoder: unit-safe frequency
// types, Kaiser-windowed FIR design, rational resampling, zero-phase
// filtering and AM envelope demodulation. Every function takes an input
// buffer and returns a new one; nothing is mutated in place.
package dsp

import (
	"fmt"
	"math"
)

// Rate is a sample rate in Hz.
type Rate int

// Hz returns the rate as a plain integer.
func (r Rate) Hz() int { return int(r) }

func (r Rate) String() string { return fmt.Sprintf("%dHz", int(r)) }

// Freq is a discrete-time angular frequency, stored in fractions of pi
// radians per sample so that the Nyquist frequency is 1.
//
// Freq and Rate never mix directly: converting between Hz and Freq always
// needs the sample rate the frequency is referenced to, and the same Hz
// value becomes a different Freq after resampling.
type Freq struct {
	piRad float64
}

// FreqRad builds a frequency from radians per sample.
func FreqRad(rad float64) Freq { return Freq{piRad: rad / math.Pi} }

// FreqPiRad builds a frequency from fractions of pi radians per sample.
func FreqPiRad(f float64) Freq { return Freq{piRad: f} }

// FreqHz builds a frequency from Hz at the given sample rate.
func FreqHz(hz float64, rate Rate) Freq {
	return Freq{piRad: 2 * hz / float64(rate)}
}

// Rad returns radians per sample.
func (f Freq) Rad() float64 { return f.piRad * math.Pi }

// PiRad returns fractions of pi radians per sample.
func (f Freq) PiRad() float64 { return f.piRad }

// Hz returns the frequency in Hz when sampled at rate.
func (f Freq) Hz(rate Rate) float64 { return f.piRad * float64(rate) / 2 }

func (f Freq) Add(g Freq) Freq { return Freq{piRad: f.piRad + g.piRad} }
func (f Freq) Sub(g Freq) Freq { return Freq{piRad: f.piRad - g.piRad} }
func (f Freq) Scale(k float64) Freq { return Freq{piRad: f.piRad * k} }
func (f Freq) Div(k float64) Freq { return Freq{piRad: f.piRad / k} }
func (f Freq) Less(g Freq) bool { return f.piRad < g.piRad }
func (f Freq) String() string { return fmt.Sprintf("%gπ rad/sample", f.piRad) }
