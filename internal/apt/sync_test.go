package apt

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/large-farva/aptdec/internal/dsp"
)

func expectedSync(pixel int) []float32 {
	var want []float32
	for range 7 {
		for range 2 * pixel {
			want = append(want, -1)
		}
		for range 2 * pixel {
			want = append(want, 1)
		}
	}
	for range 8 * pixel {
		want = append(want, -1)
	}
	return want
}

func TestSyncReference(t *testing.T) {
	t.Parallel()
	f := DefaultFormat()
	for _, mult := range []int{1, 2, 3, 5} {
		got, err := SyncReference(f, dsp.Rate(4160*mult))
		if err != nil {
			t.Fatalf("SyncReference(%d): %v", 4160*mult, err)
		}
		if want := expectedSync(mult); !slices.Equal(got, want) {
			t.Errorf("SyncReference(%d) = %v, want %v", 4160*mult, got, want)
		}
	}
	if len(expectedSync(5)) != 180 || len(expectedSync(2)) != 72 {
		t.Fatal("reference lengths do not match the 36 pixel sync frame")
	}
}

func TestSyncReferenceRejectsRate(t *testing.T) {
	t.Parallel()
	if _, err := SyncReference(DefaultFormat(), 11025); dsp.KindOf(err) != dsp.KindConfig {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestCorrelateFFTMatchesDirect(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))
	x := make([]float32, 5000)
	for i := range x {
		x[i] = float32(rng.NormFloat64() + 3)
	}
	ref := expectedSync(3)
	direct := Correlate(x, ref)
	fft := CorrelateFFT(x, ref)
	if len(direct) != len(x)-len(ref)+1 || len(fft) != len(direct) {
		t.Fatalf("lengths %d, %d, want %d", len(direct), len(fft), len(x)-len(ref)+1)
	}
	for i := range direct {
		if math.Abs(float64(direct[i]-fft[i])) > 1e-3 {
			t.Fatalf("offset %d: direct %g, fft %g", i, direct[i], fft[i])
		}
	}
}

func TestCorrelateRemovesMean(t *testing.T) {
	t.Parallel()
	x := make([]float32, 1000)
	for i := range x {
		x[i] = 5
	}
	for i, v := range Correlate(x, expectedSync(1)) {
		if math.Abs(float64(v)) > 1e-3 {
			t.Fatalf("constant input: corr[%d] = %g, want 0", i, v)
		}
	}
}

func TestCorrelateShortInput(t *testing.T) {
	t.Parallel()
	ref := expectedSync(1)
	if got := Correlate(make([]float32, len(ref)-1), ref); got != nil {
		t.Errorf("Correlate on short input = %v, want nil", got)
	}
	if got := CorrelateFFT(nil, ref); got != nil {
		t.Errorf("CorrelateFFT on empty input = %v, want nil", got)
	}
}

// syncTrain places the sync reference every spacing samples on a noisy
// background, starting at offset.
func syncTrain(lines, spacing, offset int, noise float64) ([]float32, []float32) {
	ref := expectedSync(3)
	rng := rand.New(rand.NewPCG(7, 11))
	x := make([]float32, offset+lines*spacing)
	for i := range x {
		x[i] = float32(noise * rng.NormFloat64())
	}
	for k := range lines {
		for j, v := range ref {
			x[offset+k*spacing+j] += v
		}
	}
	return x, ref
}

func TestFindPeaksSpacing(t *testing.T) {
	t.Parallel()
	const (
		lines   = 20
		spacing = 6240
		offset  = 100
	)
	x, ref := syncTrain(lines, spacing, offset, 0.3)
	corr := Correlate(x, ref)
	peaks := FindPeaks(corr, spacing/2, 0.5)
	if len(peaks) != lines {
		t.Fatalf("found %d peaks, want %d", len(peaks), lines)
	}
	for k, p := range peaks {
		if want := offset + k*spacing; abs(p.Pos-want) > 1 {
			t.Errorf("peak %d at %d, want %d", k, p.Pos, want)
		}
		if k > 0 {
			if d := p.Pos - peaks[k-1].Pos; abs(d-spacing) > 2 {
				t.Errorf("peaks %d and %d are %d apart, want %d", k-1, k, d, spacing)
			}
		}
	}
}

func TestFindPeaksKeepsStronger(t *testing.T) {
	t.Parallel()
	corr := make([]float32, 100)
	corr[10] = 5
	corr[20] = 8
	corr[60] = 7
	peaks := FindPeaks(corr, 30, 0.1)
	want := []Peak{{20, 8}, {60, 7}}
	if !slices.Equal(peaks, want) {
		t.Errorf("FindPeaks = %v, want %v", peaks, want)
	}
}

func TestFindPeaksThreshold(t *testing.T) {
	t.Parallel()
	corr := make([]float32, 1000)
	for i := 0; i < 1000; i += 100 {
		corr[i+5] = 10
	}
	corr[550] = 2
	peaks := FindPeaks(corr, 40, 0.5)
	if len(peaks) != 10 {
		t.Fatalf("found %d peaks, want 10", len(peaks))
	}
	for _, p := range peaks {
		if p.Pos == 550 {
			t.Error("weak peak survived the threshold")
		}
	}
}

func TestFindPeaksNone(t *testing.T) {
	t.Parallel()
	if got := FindPeaks(make([]float32, 100), 10, 0.5); got != nil {
		t.Errorf("FindPeaks on zeros = %v", got)
	}
}
