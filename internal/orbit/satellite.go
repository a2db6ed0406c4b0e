// Package orbit works out which way a NOAA satellite was moving during a
// recording so the decoded image can be turned north-up. It keeps a cached
// set of Two-Line Elements and runs SGP4 pass prediction for the station.
package orbit

import "strings"

// Satellite describes a NOAA APT bird.
type Satellite struct {
	Name    string
	NoradID int
	Freq    int // downlink frequency in Hz
}

// Satellites lists the NOAA satellites that transmit APT.
var Satellites = []Satellite{
	{Name: "NOAA-15", NoradID: 25338, Freq: 137620000},
	{Name: "NOAA-18", NoradID: 28654, Freq: 137912500},
	{Name: "NOAA-19", NoradID: 33591, Freq: 137100000},
}

// SatelliteByName finds a satellite by name, ignoring case and accepting
// "NOAA19", "noaa 19" and "19" for NOAA-19.
func SatelliteByName(name string) (Satellite, bool) {
	key := normalize(name)
	for _, s := range Satellites {
		n := normalize(s.Name)
		if n == key || strings.TrimPrefix(n, "NOAA") == key {
			return s, true
		}
	}
	return Satellite{}, false
}

// SatelliteByNoradID returns the satellite with the given catalog number.
func SatelliteByNoradID(id int) (Satellite, bool) {
	for _, s := range Satellites {
		if s.NoradID == id {
			return s, true
		}
	}
	return Satellite{}, false
}

func normalize(s string) string {
	r := strings.NewReplacer("-", "", " ", "", "_", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(s)))
}
