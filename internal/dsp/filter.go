package dsp

import (
	"math"
)

// MaxTaps bounds the length of a designed filter. Interpolating by a large L
// references the transition band to an L times higher rate, and the tap
// count grows with it.
const MaxTaps = 1 << 24

// Response selects the ideal response a FilterSpec approximates.
type Response int

const (
	// Lowpass passes everything below Cutoff.
	Lowpass Response = iota
	// LowpassDCRemoval is a lowpass with a second transition band from 0 to
	// Transition, removing DC and the lowest frequencies.
	LowpassDCRemoval
	// Identity is a single tap equal to Gain.
	Identity
)

func (r Response) String() string {
	switch r {
	case Lowpass:
		return "lowpass"
	case LowpassDCRemoval:
		return "lowpass+dc-removal"
	case Identity:
		return "identity"
	default:
		return "unknown"
	}
}

// FilterSpec describes an FIR filter by its design parameters. Frequencies
// are referenced to the rate of the signal being filtered. The zero Gain is
// treated as 1. FilterSpec is comparable and serves as the FilterCache key.
type FilterSpec struct {
	Response   Response
	Cutoff     Freq
	Transition Freq
	Atten      float64 // stopband attenuation, positive dB
	Gain       float64
}

// Coefficients is an odd-length, symmetric FIR impulse response. The centre
// tap sits at index (len-1)/2.
type Coefficients []float64

// Center returns the index of the centre tap.
func (c Coefficients) Center() int { return (len(c) - 1) / 2 }

// Sum returns the DC gain of the filter.
func (c Coefficients) Sum() float64 {
	var s float64
	for _, v := range c {
		s += v
	}
	return s
}

// Expand references the spec to a rate l times higher, as needed after
// inserting l-1 zeros between samples, and multiplies the gain by l so the
// interpolated signal keeps its amplitude.
func (s FilterSpec) Expand(l int) FilterSpec {
	if l <= 1 {
		return s
	}
	s.Cutoff = s.Cutoff.Div(float64(l))
	s.Transition = s.Transition.Div(float64(l))
	s.Gain = s.gain() * float64(l)
	return s
}

func (s FilterSpec) gain() float64 {
	if s.Gain == 0 {
		return 1
	}
	return s.Gain
}

// Validate checks the parameters without designing the filter.
func (s FilterSpec) Validate() error {
	if s.Gain < 0 || math.IsNaN(s.Gain) {
		return configError("gain", s.Gain, "filter gain must be positive")
	}
	switch s.Response {
	case Identity:
		return nil
	case Lowpass, LowpassDCRemoval:
	default:
		return configError("response", float64(s.Response), "unknown filter response")
	}
	if !(s.Atten > 0) {
		return configError("atten", s.Atten, "attenuation must be positive")
	}
	if !(s.Transition.PiRad() > 0) {
		return configError("transition", s.Transition.PiRad(), "transition width must be positive")
	}
	c := s.Cutoff.PiRad()
	if !(c > 0 && c < 1) {
		return configError("cutoff", c, "cutoff must lie strictly between 0 and Nyquist")
	}
	if s.Response == LowpassDCRemoval {
		lo := s.Transition.PiRad()
		hi := c - s.Transition.PiRad()/2
		if hi <= lo {
			return configError("cutoff", c, "DC removal leaves an empty passband")
		}
	}
	_, err := KaiserLength(s.Atten, s.Transition)
	return err
}

// Design computes the windowed-sinc coefficients and normalises them to the
// requested passband gain.
func (s FilterSpec) Design() (Coefficients, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Response == Identity {
		return Coefficients{s.gain()}, nil
	}

	window, err := Kaiser(s.Atten, s.Transition)
	if err != nil {
		return nil, err
	}

	taps := make(Coefficients, len(window))
	half := (len(window) - 1) / 2
	c := s.Cutoff.PiRad()
	dc := s.Transition.PiRad() / 2
	for i := range taps {
		n := float64(i - half)
		h := sinc(n, c)
		if s.Response == LowpassDCRemoval {
			h -= sinc(n, dc)
		}
		taps[i] = h * window[i]
	}

	// Reference frequency where the response should equal the gain: DC for
	// the lowpass, the middle of the passband for the DC removal variant.
	var ref float64
	if s.Response == LowpassDCRemoval {
		ref = math.Pi * (s.Transition.PiRad() + c - s.Transition.PiRad()/2) / 2
	}
	resp := amplitudeAt(taps, ref)
	if resp == 0 || math.IsNaN(resp) {
		return nil, configError("cutoff", c, "filter has no gain in its passband")
	}
	scale := s.gain() / resp
	for i := range taps {
		taps[i] *= scale
	}
	return taps, nil
}

// sinc samples the ideal lowpass impulse response sin(n·pi·c)/(n·pi) with
// cutoff c in fractions of pi. At n = 0 the limit c is used.
func sinc(n, c float64) float64 {
	if n == 0 {
		return c
	}
	return math.Sin(n*math.Pi*c) / (n * math.Pi)
}

// amplitudeAt evaluates the zero-phase response of a symmetric filter at w
// radians per sample.
func amplitudeAt(taps Coefficients, w float64) float64 {
	half := taps.Center()
	var sum float64
	for i, h := range taps {
		sum += h * math.Cos(w*float64(i-half))
	}
	return sum
}

// KaiserLength returns the odd window length needed for the given stopband
// attenuation and transition width, using Kaiser's empirical formula
// N = (A - 8) / (2.285·Δω) + 1.
func KaiserLength(atten float64, transition Freq) (int, error) {
	if !(atten > 0) {
		return 0, configError("atten", atten, "attenuation must be positive")
	}
	dw := transition.Rad()
	if !(dw > 0) {
		return 0, configError("transition", transition.PiRad(), "transition width must be positive")
	}
	n := math.Ceil((atten-8)/(2.285*dw)) + 1
	if n < 1 {
		n = 1
	}
	if n > MaxTaps {
		return 0, overflowError("taps", n, "filter would be too long")
	}
	length := int(n)
	if length%2 == 0 {
		length++
	}
	return length, nil
}

// KaiserBeta returns the window shape parameter for a stopband attenuation
// in dB.
func KaiserBeta(atten float64) float64 {
	switch {
	case atten > 50:
		return 0.1102 * (atten - 8.7)
	case atten >= 21:
		return 0.5842*math.Pow(atten-21, 0.4) + 0.07886*(atten-21)
	default:
		return 0
	}
}

// Kaiser designs an odd-length Kaiser window.
func Kaiser(atten float64, transition Freq) ([]float64, error) {
	length, err := KaiserLength(atten, transition)
	if err != nil {
		return nil, err
	}
	beta := KaiserBeta(atten)
	norm := BesselI0(beta)
	half := (length - 1) / 2
	m := float64(length) / 2

	window := make([]float64, length)
	for i := range window {
		r := float64(i-half) / m
		window[i] = BesselI0(beta*math.Sqrt(1-r*r)) / norm
	}
	return window, nil
}

// BesselI0 evaluates the zeroth-order modified Bessel function of the first
// kind by its power series sum((x/2)^k / k!)^2, stopping once a term no
// longer changes the result.
func BesselI0(x float64) float64 {
	half := x / 2
	sum := 1.0
	term := 1.0
	for k := 1; k < 500; k++ {
		t := half / float64(k)
		term *= t * t
		sum += term
		if term < sum*1e-16 {
			break
		}
	}
	return sum
}
