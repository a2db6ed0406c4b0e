package dsp

import (
	"log/slog"
	"math"
	"slices"
)

// MaxFactor bounds the interpolation and decimation factors. Nearly coprime
// rates such as 48001 and 44100 reduce to huge factors whose filters and
// index arithmetic are not worth attempting.
const MaxFactor = 1 << 20

// Ratio is a reduced interpolation/decimation pair: the output rate is L/M
// times the input rate and gcd(L, M) = 1.
type Ratio struct {
	L int
	M int
}

// NewRatio reduces target/source by their greatest common divisor.
func NewRatio(target, source Rate) (Ratio, error) {
	if source <= 0 {
		return Ratio{}, configError("source_rate", float64(source), "sample rate must be positive")
	}
	if target <= 0 {
		return Ratio{}, configError("target_rate", float64(target), "sample rate must be positive")
	}
	g := gcd(int(target), int(source))
	r := Ratio{L: int(target) / g, M: int(source) / g}
	if r.L > MaxFactor {
		return Ratio{}, overflowError("L", float64(r.L), "interpolation factor too large")
	}
	if r.M > MaxFactor {
		return Ratio{}, overflowError("M", float64(r.M), "decimation factor too large")
	}
	return r, nil
}

// Identity reports whether the ratio leaves the rate unchanged.
func (r Ratio) Identity() bool { return r.L == 1 && r.M == 1 }

// OutputLen returns ceil(n·L/M), the number of samples produced from n input
// samples, or an overflow error when n·L does not fit an int.
func (r Ratio) OutputLen(n int) (int, error) {
	if n == 0 {
		return 0, nil
	}
	if n > (math.MaxInt-r.M)/r.L {
		return 0, overflowError("samples", float64(n), "signal too long for this resample ratio")
	}
	return (n*r.L + r.M - 1) / r.M, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Resampler converts signals between sample rates and applies FIR filters.
// Designed filters are memoised in Cache when it is set. Workers > 1 spreads
// the output samples over that many goroutines; every sample is still summed
// in the same order, so the result does not depend on Workers.
type Resampler struct {
	Cache   *FilterCache
	Workers int
	Log     *slog.Logger
}

func (r *Resampler) logger() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Log
}

// Resample converts sig to rate with an anti-aliasing lowpass whose stopband
// starts at half the lower of the two rates. transition is referenced to the
// input rate. Resampling to the same rate returns a copy of the input.
func (r *Resampler) Resample(sig Signal, rate Rate, atten float64, transition Freq) (Signal, error) {
	ratio, err := NewRatio(rate, sig.Rate)
	if err != nil {
		return Signal{}, err
	}
	if ratio.Identity() {
		return Signal{Samples: slices.Clone(sig.Samples), Rate: sig.Rate}, nil
	}

	edge := FreqHz(float64(min(sig.Rate, rate))/2, sig.Rate)
	spec := FilterSpec{
		Response:   Lowpass,
		Cutoff:     edge.Sub(transition.Div(2)),
		Transition: transition,
		Atten:      atten,
	}
	return r.resample(sig, rate, ratio, spec)
}

// ResampleWithFilter converts sig to rate using spec, referenced to the
// input rate, as the anti-aliasing filter. The caller is responsible for
// choosing a filter that actually prevents aliasing. With equal rates the
// filter is applied once and nothing else happens.
func (r *Resampler) ResampleWithFilter(sig Signal, rate Rate, spec FilterSpec) (Signal, error) {
	ratio, err := NewRatio(rate, sig.Rate)
	if err != nil {
		return Signal{}, err
	}
	if ratio.Identity() {
		return r.Filter(sig, spec)
	}
	return r.resample(sig, rate, ratio, spec)
}

// FilterFor returns the coefficients ResampleWithFilter would run for the
// given rates and spec.
func (r *Resampler) FilterFor(from, to Rate, spec FilterSpec) (Coefficients, error) {
	ratio, err := NewRatio(to, from)
	if err != nil {
		return nil, err
	}
	return r.Cache.Design(spec.Expand(ratio.L))
}

func (r *Resampler) resample(sig Signal, rate Rate, ratio Ratio, spec FilterSpec) (Signal, error) {
	if spec.Response == Identity && ratio.L > 1 {
		return Signal{}, configError("L", float64(ratio.L), "interpolation needs a lowpass filter")
	}
	outLen, err := ratio.OutputLen(len(sig.Samples))
	if err != nil {
		return Signal{}, err
	}
	taps, err := r.Cache.Design(spec.Expand(ratio.L))
	if err != nil {
		return Signal{}, err
	}

	r.logger().Debug("resampling",
		"from", sig.Rate, "to", rate,
		"l", ratio.L, "m", ratio.M,
		"taps", len(taps), "samples", len(sig.Samples))

	out := make([]float32, outLen)
	if len(sig.Samples) > 0 {
		polyphase(out, sig.Samples, taps, ratio, r.Workers)
	}
	return Signal{Samples: out, Rate: rate}, nil
}

// polyphase computes the output of "insert L-1 zeros, filter, keep every
// Mth sample" without building the expanded signal.
//
// Output sample n sits at expanded index t = n·M. With the filter centred on
// t, only expanded indices u in [t-c, t+c] that are multiples of L hold an
// input sample (x[u/L]), and they meet tap t+c-u. Everything outside the
// input is zero.
func polyphase(out, x []float32, taps Coefficients, ratio Ratio, workers int) {
	l, m := ratio.L, ratio.M
	c := taps.Center()
	last := (len(x) - 1) * l

	parallel(len(out), workers, func(lo, hi int) {
		for n := lo; n < hi; n++ {
			t := n * m
			u := t - c
			if u < 0 {
				u = 0
			} else if rem := u % l; rem != 0 {
				u += l - rem
			}
			end := min(t+c, last)

			var sum float64
			for k, j := u/l, t+c-u; u <= end; u, k, j = u+l, k+1, j-l {
				sum += taps[j] * float64(x[k])
			}
			out[n] = float32(sum)
		}
	})
}

// Filter applies spec to sig with zero phase: the output has the same length
// and timing as the input, with zeros assumed outside it.
func (r *Resampler) Filter(sig Signal, spec FilterSpec) (Signal, error) {
	if sig.Rate <= 0 {
		return Signal{}, configError("rate", float64(sig.Rate), "sample rate must be positive")
	}
	taps, err := r.Cache.Design(spec)
	if err != nil {
		return Signal{}, err
	}
	r.logger().Debug("filtering", "response", spec.Response, "taps", len(taps), "samples", len(sig.Samples))
	return Signal{Samples: Convolve(sig.Samples, taps, r.Workers), Rate: sig.Rate}, nil
}

// Convolve runs the centred FIR taps over x and returns a new slice of the
// same length.
func Convolve(x []float32, taps Coefficients, workers int) []float32 {
	out := make([]float32, len(x))
	if len(x) == 0 {
		return out
	}
	if len(taps) == 1 {
		for i, v := range x {
			out[i] = float32(taps[0] * float64(v))
		}
		return out
	}
	ratio := Ratio{L: 1, M: 1}
	polyphase(out, x, taps, ratio, workers)
	return out
}
