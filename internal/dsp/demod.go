package dsp

import "math"

// MinSinTheta is the smallest |sin(theta)| Demodulate accepts. Carriers near
// DC or Nyquist make the envelope formula divide by almost zero.
const MinSinTheta = 1e-3

// Demodulate recovers the envelope of an AM signal whose carrier sits at
// carrier rad/sample. Each output sample is computed from the current and
// previous input with
//
//	env[n] = sqrt(x[n]² + x[n-1]² - 2·x[n]·x[n-1]·cos θ) / sin θ
//
// which is exact for a sinusoid of constant amplitude at θ. The first sample
// has no predecessor and is paired with itself.
func Demodulate(sig Signal, carrier Freq) (Signal, error) {
	if sig.Rate <= 0 {
		return Signal{}, configError("rate", float64(sig.Rate), "sample rate must be positive")
	}
	theta := carrier.Rad()
	sin, cos := math.Sincos(theta)
	if math.Abs(sin) < MinSinTheta {
		return Signal{}, configError("carrier", carrier.Hz(sig.Rate), "carrier too close to DC or Nyquist for envelope detection")
	}
	if len(sig.Samples) == 0 {
		return Signal{Rate: sig.Rate}, nil
	}

	out := scan(sig.Samples, sig.Samples[0], func(prev, cur float32) float32 {
		x, xp := float64(cur), float64(prev)
		sq := x*x + xp*xp - 2*x*xp*cos
		if sq < 0 {
			// Rounding when x == xp and cos is close to 1.
			sq = 0
		}
		return float32(math.Sqrt(sq) / math.Abs(sin))
	})
	return Signal{Samples: out, Rate: sig.Rate}, nil
}

// scan maps every element together with its predecessor; the first element
// is paired with first.
func scan[T, U any](xs []T, first T, f func(prev, cur T) U) []U {
	out := make([]U, len(xs))
	prev := first
	for i, cur := range xs {
		out[i] = f(prev, cur)
		prev = cur
	}
	return out
}
