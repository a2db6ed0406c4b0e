package apt

import (
	"slices"
	"testing"
)

func TestMapPixels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		in         []float32
		want       []uint8
		degenerate bool
	}{
		{"range", []float32{-1, 0, 1}, []uint8{0, 128, 255}, false},
		{"rounding", []float32{0, 0.6 / 255, 1.4 / 255, 1}, []uint8{0, 1, 1, 255}, false},
		{"offset", []float32{10, 12, 14}, []uint8{0, 128, 255}, false},
		{"constant", []float32{0.3, 0.3, 0.3}, []uint8{128, 128, 128}, true},
		{"empty", nil, []uint8{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, degenerate := MapPixels(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("MapPixels(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if degenerate != tt.degenerate {
				t.Errorf("degenerate = %v, want %v", degenerate, tt.degenerate)
			}
		})
	}
}

func TestFormatDefaults(t *testing.T) {
	t.Parallel()
	f := DefaultFormat()
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}
	if f.LinePixels != 2080 || ChannelPixels != 1040 {
		t.Errorf("line = %d px, channel = %d px", f.LinePixels, ChannelPixels)
	}
	if f.LineRate() != 2 {
		t.Errorf("LineRate() = %g, want 2", f.LineRate())
	}
	if f.SyncPixelsTotal() != 36 {
		t.Errorf("sync frame = %d px, want 36", f.SyncPixelsTotal())
	}
	n, err := f.LineSamples(12480)
	if err != nil || n != 6240 {
		t.Errorf("LineSamples(12480) = %d, %v", n, err)
	}
	if _, err := f.LineSamples(12000); err == nil {
		t.Error("LineSamples accepted a rate that is not a multiple of 4160")
	}
}

func TestProfiles(t *testing.T) {
	t.Parallel()
	f := DefaultFormat()
	for _, p := range Profiles() {
		if err := p.Validate(f); err != nil {
			t.Errorf("profile %s: %v", p.Name, err)
		}
		got, ok := LookupProfile(p.Name)
		if !ok || got != p {
			t.Errorf("LookupProfile(%q) = %v, %v", p.Name, got, ok)
		}
	}
	if _, ok := LookupProfile("turbo"); ok {
		t.Error("LookupProfile found an unknown profile")
	}

	bad := ProfileStandard
	bad.DemodAtten = 0
	if err := bad.Validate(f); err == nil {
		t.Error("profile with zero demodulation attenuation validated")
	}
}

func TestSyncConfigValidate(t *testing.T) {
	t.Parallel()
	if err := DefaultSync().Validate(); err != nil {
		t.Fatal(err)
	}
	s := DefaultSync()
	s.PeakTolerance = 1.5
	if err := s.Validate(); err == nil {
		t.Error("tolerance above one line validated")
	}
	if m, err := ParseCorrelationMethod("FFT"); err != nil || m != CorrelateFourier {
		t.Errorf("ParseCorrelationMethod(FFT) = %v, %v", m, err)
	}
	if _, err := ParseCorrelationMethod("wavelet"); err == nil {
		t.Error("ParseCorrelationMethod accepted an unknown method")
	}
}
