package orbit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"
)

// DefaultTLEURL is the CelesTrak weather group.
const DefaultTLEURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=weather&FORMAT=tle"

const tleCacheFile = "weather_tle.txt"

// ErrNoTLE is returned when none of the wanted satellites appear in the
// element sets that could be loaded.
var ErrNoTLE = errors.New("no matching TLE")

// TLEStore fetches and caches element sets. Fetch prefers a fresh disk
// cache, then the network, then a stale cache.
type TLEStore struct {
	URL      string
	CacheDir string
	MaxAge   time.Duration
	// Wanted restricts parsing to these NORAD IDs; empty means the NOAA
	// satellites in Satellites.
	Wanted []int

	Client *http.Client
	Log    *slog.Logger
}

// NewTLEStore returns a store caching under cacheDir.
func NewTLEStore(url, cacheDir string, refreshHours int, log *slog.Logger) *TLEStore {
	return &TLEStore{
		URL:      url,
		CacheDir: cacheDir,
		MaxAge:   time.Duration(refreshHours) * time.Hour,
		Log:      log,
	}
}

func (s *TLEStore) logger() *slog.Logger {
	if s.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Log
}

func (s *TLEStore) cachePath() string { return filepath.Join(s.CacheDir, tleCacheFile) }

// Fetch returns the wanted element sets keyed by NORAD ID.
func (s *TLEStore) Fetch(ctx context.Context) (map[int]*sgp4.TLE, error) {
	raw, err := s.loadOrFetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(raw, s.wanted())
}

// ForceRefresh skips the fresh-cache check.
func (s *TLEStore) ForceRefresh(ctx context.Context) (map[int]*sgp4.TLE, error) {
	body, err := s.fetchFromNetwork(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.writeCache(body); err != nil {
		s.logger().Warn("tle cache write failed", "err", err)
	}
	return Parse(body, s.wanted())
}

func (s *TLEStore) wanted() []int {
	if len(s.Wanted) > 0 {
		return s.Wanted
	}
	ids := make([]int, len(Satellites))
	for i, sat := range Satellites {
		ids[i] = sat.NoradID
	}
	return ids
}

func (s *TLEStore) loadOrFetch(ctx context.Context) (string, error) {
	log := s.logger()
	path := s.cachePath()

	info, err := os.Stat(path)
	if err == nil && time.Since(info.ModTime()) < s.MaxAge {
		if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
			log.Debug("tle from cache", "path", path, "age", time.Since(info.ModTime()).Round(time.Second))
			return string(b), nil
		}
	}

	body, fetchErr := s.fetchFromNetwork(ctx)
	if fetchErr == nil {
		if err := s.writeCache(body); err != nil {
			log.Warn("tle cache write failed", "err", err)
		}
		return body, nil
	}
	log.Warn("tle fetch failed", "url", s.URL, "err", fetchErr)

	if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
		log.Info("using stale tle cache", "path", path)
		return string(b), nil
	}
	return "", fmt.Errorf("all TLE sources exhausted: %w", fetchErr)
}

func (s *TLEStore) fetchFromNetwork(ctx context.Context) (string, error) {
	if s.URL == "" {
		return "", errors.New("no TLE url configured")
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TLE fetch returned HTTP %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeCache goes through a temp file and rename so readers never see a
// half-written cache.
func (s *TLEStore) writeCache(data string) error {
	if s.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.CacheDir, "tle-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.cachePath())
}

// LoadFile parses element sets from a local file.
func LoadFile(path string, wanted []int) (map[int]*sgp4.TLE, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(b), wanted)
}

// Parse extracts element sets for the wanted NORAD IDs from TLE text. Sets
// may come with or without a name line; sets that fail to parse are
// skipped.
func Parse(raw string, wanted []int) (map[int]*sgp4.TLE, error) {
	want := make(map[int]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
	}

	var lines []string
	for l := range strings.Lines(raw) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	result := make(map[int]*sgp4.TLE)
	for i := 0; i+1 < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "1 ") || !strings.HasPrefix(lines[i+1], "2 ") {
			continue
		}
		name := "UNKNOWN"
		if i > 0 && !strings.HasPrefix(lines[i-1], "2 ") {
			name = lines[i-1]
		}
		tle, err := sgp4.ParseTLE(name + "\n" + lines[i] + "\n" + lines[i+1])
		i++
		if err != nil {
			continue
		}
		if len(want) == 0 || want[tle.SatelliteNumber] {
			result[tle.SatelliteNumber] = tle
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w in %d lines of input", ErrNoTLE, len(lines))
	}
	return result, nil
}
