package apt

import (
	"slices"

	"github.com/large-farva/aptdec/internal/dsp"
)

// Profile is a set of decoding parameters trading speed against accuracy.
type Profile struct {
	Name string `json:"name"`

	// WorkRate is the intermediate rate the recording is resampled to. It
	// must be a multiple of the pixel rate.
	WorkRate dsp.Rate `json:"work_rate"`

	// Resampling filter: a lowpass that also removes everything below
	// ResampleTransitionHz.
	ResampleAtten        float64 `json:"resample_atten"`
	ResampleTransitionHz float64 `json:"resample_transition_hz"`
	ResampleCutoffHz     float64 `json:"resample_cutoff_hz"`

	// DemodAtten is the attenuation of the lowpass run after demodulation.
	DemodAtten float64 `json:"demod_atten"`

	// Plain WAV resampling, outside of decoding. The transition width is in
	// fractions of pi rad/sample at the input rate.
	WavAtten      float64 `json:"wav_atten"`
	WavTransition float64 `json:"wav_transition"`
}

// Built-in profiles.
var (
	ProfileStandard = Profile{
		Name:                 "standard",
		WorkRate:             12480,
		ResampleAtten:        30,
		ResampleTransitionHz: 1000,
		ResampleCutoffHz:     4800,
		DemodAtten:           25,
		WavAtten:             40,
		WavTransition:        0.1,
	}
	ProfileFast = Profile{
		Name:                 "fast",
		WorkRate:             8320,
		ResampleAtten:        25,
		ResampleTransitionHz: 800,
		ResampleCutoffHz:     4800,
		DemodAtten:           20,
		WavAtten:             30,
		WavTransition:        0.15,
	}
	ProfileSlow = Profile{
		Name:                 "slow",
		WorkRate:             16640,
		ResampleAtten:        40,
		ResampleTransitionHz: 500,
		ResampleCutoffHz:     4800,
		DemodAtten:           30,
		WavAtten:             50,
		WavTransition:        0.05,
	}
)

// Profiles returns the built-in profiles, standard first.
func Profiles() []Profile {
	return []Profile{ProfileStandard, ProfileFast, ProfileSlow}
}

// LookupProfile returns the built-in profile with the given name.
func LookupProfile(name string) (Profile, bool) {
	i := slices.IndexFunc(Profiles(), func(p Profile) bool { return p.Name == name })
	if i < 0 {
		return Profile{}, false
	}
	return Profiles()[i], true
}

// Validate checks the profile against the format.
func (p Profile) Validate(f Format) error {
	if _, err := f.SamplesPerPixel(p.WorkRate); err != nil {
		return err
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"resample_atten", p.ResampleAtten},
		{"resample_transition_hz", p.ResampleTransitionHz},
		{"resample_cutoff_hz", p.ResampleCutoffHz},
		{"demod_atten", p.DemodAtten},
		{"wav_atten", p.WavAtten},
		{"wav_transition", p.WavTransition},
	}
	for _, c := range checks {
		if !(c.value > 0) {
			return configError(c.name, c.value, "must be positive")
		}
	}
	if p.WavTransition >= 1 {
		return configError("wav_transition", p.WavTransition, "must be below 1 (Nyquist)")
	}
	return nil
}
