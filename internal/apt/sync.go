package apt

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/large-farva/aptdec/internal/dsp"
)

// CorrelationMethod selects how the sync correlation is computed.
type CorrelationMethod int

const (
	// CorrelateDirect adds and subtracts runs of samples; it is exact and
	// linear in the number of sync pulses.
	CorrelateDirect CorrelationMethod = iota
	// CorrelateFourier multiplies spectra from a real FFT.
	CorrelateFourier
)

func (m CorrelationMethod) String() string {
	switch m {
	case CorrelateDirect:
		return "direct"
	case CorrelateFourier:
		return "fft"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseCorrelationMethod accepts "direct" or "fft".
func ParseCorrelationMethod(s string) (CorrelationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return CorrelateDirect, nil
	case "fft":
		return CorrelateFourier, nil
	default:
		return 0, fmt.Errorf("unknown correlation method %q (want direct or fft)", s)
	}
}

// SyncReference expands the sync A pattern to rate, one ±1 value per
// sample. rate must be a multiple of the pixel rate.
func SyncReference(f Format, rate dsp.Rate) ([]float32, error) {
	spp, err := f.SamplesPerPixel(rate)
	if err != nil {
		return nil, err
	}
	ref := make([]float32, 0, f.SyncPixelsTotal()*spp)
	for _, p := range f.SyncA {
		for range p.Pixels * spp {
			ref = append(ref, float32(p.Level))
		}
	}
	return ref, nil
}

// Correlate slides ref over x with the mean of x removed and returns one
// score per offset, len(x)-len(ref)+1 values in total. A score peaks where
// the reference lines up with a matching pattern in x.
//
// The reference is consumed as runs of equal values, so the cost is the
// number of runs per offset rather than the length of ref.
func Correlate(x, ref []float32) []float32 {
	n := len(x) - len(ref) + 1
	if len(ref) == 0 || n <= 0 {
		return nil
	}
	mean := dsp.Mean(x)

	prefix := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + float64(v) - mean
	}

	type run struct {
		start, end int
		weight     float64
	}
	var runs []run
	for i := 0; i < len(ref); {
		j := i
		for j < len(ref) && ref[j] == ref[i] {
			j++
		}
		if ref[i] != 0 {
			runs = append(runs, run{i, j, float64(ref[i])})
		}
		i = j
	}

	out := make([]float32, n)
	for i := range out {
		var sum float64
		for _, r := range runs {
			sum += r.weight * (prefix[i+r.end] - prefix[i+r.start])
		}
		out[i] = float32(sum)
	}
	return out
}

// CorrelateFFT computes the same scores as Correlate through the frequency
// domain. Both inputs are zero padded to a power of two so the circular
// product has no wrap-around.
func CorrelateFFT(x, ref []float32) []float32 {
	n := len(x) - len(ref) + 1
	if len(ref) == 0 || n <= 0 {
		return nil
	}
	size := 1
	for size < len(x)+len(ref)-1 {
		size <<= 1
	}
	mean := dsp.Mean(x)

	xs := make([]float64, size)
	for i, v := range x {
		xs[i] = float64(v) - mean
	}
	rs := make([]float64, size)
	for i, v := range ref {
		rs[i] = float64(v)
	}

	fft := fourier.NewFFT(size)
	xc := fft.Coefficients(nil, xs)
	rc := fft.Coefficients(nil, rs)
	for i := range xc {
		xc[i] *= complex(real(rc[i]), -imag(rc[i]))
	}
	seq := fft.Sequence(xs, xc)

	out := make([]float32, n)
	scale := 1 / float64(size)
	for i := range out {
		out[i] = float32(seq[i] * scale)
	}
	return out
}

// Peak is a candidate sync position in samples with its correlation score.
type Peak struct {
	Pos      int
	Strength float32
}

// FindPeaks returns the strongest local maxima of corr, no two closer than
// minSpacing samples, ordered by position. Candidates are accepted strongest
// first; the survivors are then pruned of any peak weaker than threshold
// times the 90th percentile of the accepted strengths, which drops the
// noise maxima found in stretches without sync.
func FindPeaks(corr []float32, minSpacing int, threshold float64) []Peak {
	var cands []Peak
	for i, v := range corr {
		if v <= 0 {
			continue
		}
		if i > 0 && corr[i-1] >= v {
			continue
		}
		if i+1 < len(corr) && corr[i+1] > v {
			continue
		}
		cands = append(cands, Peak{Pos: i, Strength: v})
	}
	slices.SortStableFunc(cands, func(a, b Peak) int { return cmp.Compare(b.Strength, a.Strength) })

	// accepted is kept sorted by position.
	var accepted []Peak
	for _, c := range cands {
		i, _ := slices.BinarySearchFunc(accepted, c.Pos, func(p Peak, pos int) int { return cmp.Compare(p.Pos, pos) })
		if i > 0 && c.Pos-accepted[i-1].Pos < minSpacing {
			continue
		}
		if i < len(accepted) && accepted[i].Pos-c.Pos < minSpacing {
			continue
		}
		accepted = slices.Insert(accepted, i, c)
	}
	if len(accepted) == 0 {
		return nil
	}

	strengths := make([]float64, len(accepted))
	for i, p := range accepted {
		strengths[i] = float64(p.Strength)
	}
	limit := threshold * percentile(strengths, 0.9)

	out := accepted[:0]
	for _, p := range accepted {
		if float64(p.Strength) >= limit {
			out = append(out, p)
		}
	}
	return out
}

func percentile(v []float64, q float64) float64 {
	s := slices.Clone(v)
	slices.Sort(s)
	i := int(math.Round(q * float64(len(s)-1)))
	return s[i]
}
