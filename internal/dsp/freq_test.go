package dsp

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestFreqConversions(t *testing.T) {
	t.Parallel()
	f := FreqHz(2400, 12480)
	if got := f.Hz(12480); math.Abs(got-2400) > 1e-9 {
		t.Errorf("Hz(12480) = %g, want 2400", got)
	}
	if got, want := f.Rad(), 2*math.Pi*2400/12480; math.Abs(got-want) > 1e-12 {
		t.Errorf("Rad() = %g, want %g", got, want)
	}
	if got := FreqRad(math.Pi / 2).PiRad(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("FreqRad(pi/2).PiRad() = %g, want 0.5", got)
	}
	// The same Hz value after resampling is a different discrete frequency.
	if f == FreqHz(2400, 11025) {
		t.Error("2400 Hz at 12480 and at 11025 compare equal")
	}
}

func TestFreqArithmetic(t *testing.T) {
	t.Parallel()
	a, b := FreqPiRad(0.5), FreqPiRad(0.125)
	tests := []struct {
		name string
		got  Freq
		want float64
	}{
		{"add", a.Add(b), 0.625},
		{"sub", a.Sub(b), 0.375},
		{"scale", a.Scale(0.5), 0.25},
		{"div", a.Div(4), 0.125},
	}
	for _, tt := range tests {
		if tt.got.PiRad() != tt.want {
			t.Errorf("%s = %g, want %g", tt.name, tt.got.PiRad(), tt.want)
		}
	}
	if !b.Less(a) || a.Less(b) {
		t.Error("Less ordering is wrong")
	}
}

func TestSignalValidate(t *testing.T) {
	t.Parallel()
	if _, err := NewSignal(nil, 0); !errors.Is(err, ErrConfig) {
		t.Errorf("NewSignal rate 0: err = %v", err)
	}
	sig := Signal{Samples: []float32{0, 1, float32(math.NaN()), 2}, Rate: 8000}
	err := sig.Validate()
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindInvalidSample || e.Value != 2 {
		t.Errorf("Validate() = %v, want invalid sample at index 2", err)
	}
	sig.Samples[2] = float32(math.Inf(-1))
	if err := sig.Validate(); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("Validate() with -Inf = %v", err)
	}
	sig.Samples[2] = 3
	if err := sig.Validate(); err != nil {
		t.Errorf("Validate() on finite samples = %v", err)
	}
	if d := sig.Duration().Seconds(); d != 0.0005 {
		t.Errorf("Duration() = %gs, want 0.0005s", d)
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("decode: %w", configError("atten", -1, "attenuation must be positive"))
	if !errors.Is(err, ErrConfig) {
		t.Error("wrapped config error does not match ErrConfig")
	}
	if errors.Is(err, ErrOverflow) {
		t.Error("config error matches ErrOverflow")
	}
	if KindOf(err) != KindConfig {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindConfig)
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf on a plain error is not 0")
	}
	for _, k := range []Kind{KindConfig, KindOverflow, KindInvalidSample} {
		if !k.Fatal() {
			t.Errorf("%v is not fatal", k)
		}
	}
	for _, k := range []Kind{KindDegenerate, KindNoSync} {
		if k.Fatal() {
			t.Errorf("%v is fatal", k)
		}
	}
}
