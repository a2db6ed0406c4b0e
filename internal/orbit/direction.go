package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/akhenakh/sgp4"
)

// Direction is the along-track heading of a pass.
type Direction int

const (
	DirectionUnknown Direction = iota
	Southbound
	Northbound
)

func (d Direction) String() string {
	switch d {
	case Southbound:
		return "southbound"
	case Northbound:
		return "northbound"
	default:
		return "unknown"
	}
}

// ErrNoPass means no pass of the satellite overlaps the recording.
var ErrNoPass = errors.New("no pass overlaps the recording")

// passMargin widens the prediction window around the recording so that a
// pass already in progress at the start is still found.
const passMargin = 20 * time.Minute

// Pass is one predicted pass over the station.
type Pass struct {
	AOS, LOS   time.Time
	MaxElev    float64
	AOSAzimuth float64
	LOSAzimuth float64
}

// Direction infers the heading from where the satellite rises: the NOAA
// birds are in near-polar orbits, so a pass that rises in the southern half
// of the sky is moving north.
func (p Pass) Direction() Direction {
	return HeadingFromAzimuth(p.AOSAzimuth)
}

// HeadingFromAzimuth maps an AOS azimuth in degrees to a heading.
func HeadingFromAzimuth(aosAz float64) Direction {
	if math.IsNaN(aosAz) || math.IsInf(aosAz, 0) {
		return DirectionUnknown
	}
	az := math.Mod(aosAz, 360)
	if az < 0 {
		az += 360
	}
	if az > 90 && az < 270 {
		return Northbound
	}
	return Southbound
}

// Passes predicts every pass of tle over loc between start and end.
func Passes(tle *sgp4.TLE, loc Location, start, end time.Time) ([]Pass, error) {
	raw, err := tle.GeneratePasses(loc.Lat, loc.Lon, loc.Alt, start, end, 1)
	if err != nil {
		return nil, fmt.Errorf("generate passes: %w", err)
	}
	out := make([]Pass, 0, len(raw))
	for _, rp := range raw {
		out = append(out, Pass{
			AOS:        rp.AOS,
			LOS:        rp.LOS,
			MaxElev:    rp.MaxElevation,
			AOSAzimuth: rp.AOSAzimuth,
			LOSAzimuth: rp.LOSAzimuth,
		})
	}
	return out, nil
}

// PassDuring finds the pass of tle that overlaps [start, start+length].
func PassDuring(tle *sgp4.TLE, loc Location, start time.Time, length time.Duration) (Pass, error) {
	passes, err := Passes(tle, loc, start.Add(-passMargin), start.Add(length+passMargin))
	if err != nil {
		return Pass{}, err
	}
	return bestOverlap(passes, start, start.Add(length))
}

// bestOverlap picks the pass sharing the most time with [start, end]. A
// zero-length recording matches the pass containing start.
func bestOverlap(passes []Pass, start, end time.Time) (Pass, error) {
	var (
		best     Pass
		bestSpan time.Duration = -1
	)
	for _, p := range passes {
		lo, hi := p.AOS, p.LOS
		if start.After(lo) {
			lo = start
		}
		if end.Before(hi) {
			hi = end
		}
		if hi.Before(lo) {
			continue
		}
		if span := hi.Sub(lo); span > bestSpan {
			best, bestSpan = p, span
		}
	}
	if bestSpan < 0 {
		return Pass{}, ErrNoPass
	}
	return best, nil
}
