package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/akhenakh/sgp4"

	"github.com/large-farva/aptdec/internal/orbit"
)

const gpsdTimeout = 10 * time.Second

// shouldRotate decides whether the image is turned upside down. In auto
// mode the pass is looked up with SGP4 and northbound passes are rotated;
// when the heading cannot be determined the image is left as received and
// a warning is logged.
func shouldRotate(ctx context.Context, env Env, opts DecodeOptions, length time.Duration) (bool, error) {
	switch opts.Rotate {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	log := env.logger()

	sat, ok := orbit.SatelliteByName(opts.Satellite)
	if !ok {
		return false, usageError("unknown satellite %q", opts.Satellite)
	}
	start := opts.Start
	if start.IsZero() {
		fi, err := os.Stat(opts.Input)
		if err != nil {
			return false, err
		}
		// Recorders stamp the file when they stop writing.
		start = fi.ModTime().Add(-length)
	}

	tle, err := loadTLE(ctx, env, opts.TLEFile, sat)
	if err != nil {
		log.Warn("not rotating, no orbital elements", "satellite", sat.Name, "err", err)
		return false, nil
	}
	loc := stationLocation(ctx, env)
	pass, err := orbit.PassDuring(tle, loc, start, length)
	if err != nil {
		log.Warn("not rotating, pass not found", "satellite", sat.Name, "start", start.UTC().Format(time.RFC3339), "err", err)
		return false, nil
	}
	dir := pass.Direction()
	log.Info("pass direction", "satellite", sat.Name, "aos", pass.AOS.UTC().Format(time.RFC3339), "aos_azimuth", pass.AOSAzimuth, "direction", dir.String())
	return dir == orbit.Northbound, nil
}

func loadTLE(ctx context.Context, env Env, file string, sat orbit.Satellite) (*sgp4.TLE, error) {
	if file == "" {
		file = env.Cfg.Orbit.TLEFile
	}
	var (
		tles map[int]*sgp4.TLE
		err  error
	)
	if file != "" {
		tles, err = orbit.LoadFile(file, []int{sat.NoradID})
	} else {
		o := env.Cfg.Orbit
		store := orbit.NewTLEStore(o.TLEURL, o.CacheDir, o.TLERefreshHours, env.logger())
		tles, err = store.Fetch(ctx)
	}
	if err != nil {
		return nil, err
	}
	tle, ok := tles[sat.NoradID]
	if !ok {
		return nil, fmt.Errorf("no TLE for %s (NORAD %d)", sat.Name, sat.NoradID)
	}
	return tle, nil
}

// stationLocation returns the configured station, or a gpsd fix when
// use_gpsd is set and gpsd answers in time.
func stationLocation(ctx context.Context, env Env) orbit.Location {
	o := env.Cfg.Orbit
	loc := orbit.Location{Lat: o.Latitude, Lon: o.Longitude, Alt: o.Altitude}
	if !o.UseGPSD {
		return loc
	}
	ctx, cancel := context.WithTimeout(ctx, gpsdTimeout)
	defer cancel()
	fix, err := orbit.LocationFromGPSD(ctx, o.GPSDHost)
	if err != nil {
		env.logger().Warn("gpsd failed, using configured station", "err", err)
		return loc
	}
	env.logger().Info("station from gpsd", "lat", fix.Lat, "lon", fix.Lon, "alt", fix.Alt)
	return fix
}
