// Package config handles loading, defaulting, and validation of the aptdec
// TOML configuration file. Every section maps to a typed struct; the decode
// settings are turned into apt types by Profile and SyncSettings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/dsp"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Logging  LoggingConfig            `toml:"logging"  json:"logging"`
	Decode   DecodeConfig             `toml:"decode"   json:"decode"`
	Sync     SyncConfig               `toml:"sync"     json:"sync"`
	Profiles map[string]ProfileConfig `toml:"profiles" json:"profiles"`
	Server   ServerConfig             `toml:"server"   json:"server"`
	Orbit    OrbitConfig              `toml:"orbit"    json:"orbit"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type DecodeConfig struct {
	Profile    string `toml:"profile"     json:"profile"`
	Sync       bool   `toml:"sync"        json:"sync"`
	SyncMethod string `toml:"sync_method" json:"sync_method"`
	// Workers bounds the goroutines used by the resampler; 0 means one
	// per CPU.
	Workers int    `toml:"workers" json:"workers"`
	Rotate  string `toml:"rotate"  json:"rotate"`
}

// SyncConfig holds the line alignment fractions, all relative to one line.
type SyncConfig struct {
	MinPeakSpacing float64 `toml:"min_peak_spacing" json:"min_peak_spacing"`
	PeakTolerance  float64 `toml:"peak_tolerance"   json:"peak_tolerance"`
	PeakThreshold  float64 `toml:"peak_threshold"   json:"peak_threshold"`
}

// ProfileConfig overrides a decoding profile. Zero fields keep the value
// of the built-in profile with the same name, or of "standard" for new
// names.
type ProfileConfig struct {
	WorkRate             int     `toml:"work_rate"              json:"work_rate"`
	ResampleAtten        float64 `toml:"resample_atten"         json:"resample_atten"`
	ResampleTransitionHz float64 `toml:"resample_transition_hz" json:"resample_transition_hz"`
	ResampleCutoffHz     float64 `toml:"resample_cutoff_hz"     json:"resample_cutoff_hz"`
	DemodAtten           float64 `toml:"demod_atten"            json:"demod_atten"`
	WavAtten             float64 `toml:"wav_atten"              json:"wav_atten"`
	WavTransition        float64 `toml:"wav_transition"         json:"wav_transition"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"          json:"bind"`
	MaxUploadMB int    `toml:"max_upload_mb" json:"max_upload_mb"`
}

type OrbitConfig struct {
	TLEURL          string  `toml:"tle_url"           json:"tle_url"`
	TLEFile         string  `toml:"tle_file"          json:"tle_file"`
	CacheDir        string  `toml:"cache_dir"         json:"cache_dir"`
	TLERefreshHours int     `toml:"tle_refresh_hours" json:"tle_refresh_hours"`
	Latitude        float64 `toml:"latitude"          json:"latitude"`
	Longitude       float64 `toml:"longitude"         json:"longitude"`
	Altitude        float64 `toml:"altitude"          json:"altitude"`
	UseGPSD         bool    `toml:"use_gpsd"          json:"use_gpsd"`
	GPSDHost        string  `toml:"gpsd_host"         json:"gpsd_host"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	s := apt.DefaultSync()
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Decode: DecodeConfig{
			Profile:    apt.ProfileStandard.Name,
			Sync:       true,
			SyncMethod: s.Method.String(),
			Workers:    0,
			Rotate:     "no",
		},
		Sync: SyncConfig{
			MinPeakSpacing: s.MinPeakSpacing,
			PeakTolerance:  s.PeakTolerance,
			PeakThreshold:  s.PeakThreshold,
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			MaxUploadMB: 256,
		},
		Orbit: OrbitConfig{
			TLEURL:          "https://celestrak.org/NORAD/elements/gp.php?GROUP=weather&FORMAT=tle",
			CacheDir:        defaultCacheDir(),
			TLERefreshHours: 24,
			GPSDHost:        "localhost:2947",
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".aptdec"
	}
	return filepath.Join(dir, "aptdec")
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to the defaults
// otherwise. Use it for the implicit config location; an explicitly given
// path should go through Load.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func validate(cfg Config) error {
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Decode.Workers < 0 {
		return errors.New("decode.workers must be >= 0")
	}
	if _, err := apt.ParseCorrelationMethod(cfg.Decode.SyncMethod); err != nil {
		return fmt.Errorf("decode.sync_method: %w", err)
	}
	switch cfg.Decode.Rotate {
	case "yes", "no", "auto":
	default:
		return fmt.Errorf("decode.rotate must be yes, no or auto, got %q", cfg.Decode.Rotate)
	}
	if _, err := cfg.SyncSettings(); err != nil {
		return err
	}
	if _, err := cfg.Profile(cfg.Decode.Profile); err != nil {
		return err
	}
	for name := range cfg.Profiles {
		if _, err := cfg.Profile(name); err != nil {
			return err
		}
	}
	if cfg.Server.MaxUploadMB < 1 {
		return errors.New("server.max_upload_mb must be >= 1")
	}
	if cfg.Orbit.TLERefreshHours < 1 {
		return errors.New("orbit.tle_refresh_hours must be >= 1")
	}
	if cfg.Orbit.Latitude < -90 || cfg.Orbit.Latitude > 90 {
		return errors.New("orbit.latitude must be between -90 and 90")
	}
	if cfg.Orbit.Longitude < -180 || cfg.Orbit.Longitude > 180 {
		return errors.New("orbit.longitude must be between -180 and 180")
	}
	return nil
}

// Profile resolves a profile name against the built-in profiles and the
// [profiles] overrides, and validates it.
func (c Config) Profile(name string) (apt.Profile, error) {
	base, builtin := apt.LookupProfile(name)
	over, custom := c.Profiles[name]
	if !builtin && !custom {
		return apt.Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	if !builtin {
		base = apt.ProfileStandard
		base.Name = name
	}
	if custom {
		base = over.apply(base)
	}
	if err := base.Validate(apt.DefaultFormat()); err != nil {
		return apt.Profile{}, fmt.Errorf("profiles.%s: %w", name, err)
	}
	return base, nil
}

func (o ProfileConfig) apply(p apt.Profile) apt.Profile {
	if o.WorkRate != 0 {
		p.WorkRate = dsp.Rate(o.WorkRate)
	}
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&p.ResampleAtten, o.ResampleAtten)
	set(&p.ResampleTransitionHz, o.ResampleTransitionHz)
	set(&p.ResampleCutoffHz, o.ResampleCutoffHz)
	set(&p.DemodAtten, o.DemodAtten)
	set(&p.WavAtten, o.WavAtten)
	set(&p.WavTransition, o.WavTransition)
	return p
}

// ProfileNames lists the built-in profiles followed by any new names from
// the [profiles] section.
func (c Config) ProfileNames() []string {
	var names, extra []string
	for _, p := range apt.Profiles() {
		names = append(names, p.Name)
	}
	for name := range c.Profiles {
		if _, ok := apt.LookupProfile(name); !ok {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// SyncSettings combines [decode] and [sync] into the decoder's settings.
func (c Config) SyncSettings() (apt.SyncConfig, error) {
	m, err := apt.ParseCorrelationMethod(c.Decode.SyncMethod)
	if err != nil {
		return apt.SyncConfig{}, fmt.Errorf("decode.sync_method: %w", err)
	}
	s := apt.SyncConfig{
		Enabled:        c.Decode.Sync,
		Method:         m,
		MinPeakSpacing: c.Sync.MinPeakSpacing,
		PeakTolerance:  c.Sync.PeakTolerance,
		PeakThreshold:  c.Sync.PeakThreshold,
	}
	if err := s.Validate(); err != nil {
		return apt.SyncConfig{}, fmt.Errorf("sync: %w", err)
	}
	return s, nil
}

// Workers returns the resampler parallelism.
func (c Config) Workers() int {
	if c.Decode.Workers > 0 {
		return c.Decode.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ParseLevel maps a [logging] level to slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", s)
	}
}
