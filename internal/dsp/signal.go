package dsp

import (
	"math"
	"time"
)

// Signal is an owned sequence of samples at a fixed sample rate.
type Signal struct {
	Samples []float32
	Rate    Rate
}

// NewSignal wraps samples at rate. It fails for a non-positive rate.
func NewSignal(samples []float32, rate Rate) (Signal, error) {
	if rate <= 0 {
		return Signal{}, configError("rate", float64(rate), "sample rate must be positive")
	}
	return Signal{Samples: samples, Rate: rate}, nil
}

// Len returns the number of samples.
func (s Signal) Len() int { return len(s.Samples) }

// Duration returns the playing time of the signal.
func (s Signal) Duration() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.Rate) * float64(time.Second))
}

// Validate checks the rate and that every sample is finite.
func (s Signal) Validate() error {
	if s.Rate <= 0 {
		return configError("rate", float64(s.Rate), "sample rate must be positive")
	}
	for i, v := range s.Samples {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &Error{Kind: KindInvalidSample, Param: "index", Value: float64(i), Msg: "sample is NaN or infinite"}
		}
	}
	return nil
}

// MinMax returns the smallest and largest sample. ok is false for an empty
// signal.
func MinMax(samples []float32) (lo, hi float32, ok bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}
	lo, hi = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

// Mean returns the arithmetic mean, accumulated in float64.
func Mean(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v)
	}
	return sum / float64(len(samples))
}
