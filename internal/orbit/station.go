package orbit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Location is a ground station position.
type Location struct {
	Lat float64 `toml:"latitude"  json:"latitude"`  // degrees North
	Lon float64 `toml:"longitude" json:"longitude"` // degrees East
	Alt float64 `toml:"altitude"  json:"altitude"`  // meters above sea level
}

// tpvReport is the subset of a gpsd TPV object we need.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"altMSL"`
}

// LocationFromGPSD asks gpsd at addr for a position and waits for a 2D or
// 3D fix until ctx is done.
func LocationFromGPSD(ctx context.Context, addr string) (Location, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Location{}, fmt.Errorf("gpsd connect: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Location{}, fmt.Errorf("gpsd set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return Location{}, fmt.Errorf("gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class == "TPV" && report.Mode >= 2 {
			return Location{Lat: report.Lat, Lon: report.Lon, Alt: report.Alt}, nil
		}
	}
	if ctx.Err() != nil {
		return Location{}, fmt.Errorf("gpsd: no fix: %w", ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return Location{}, fmt.Errorf("gpsd read: %w", err)
	}
	return Location{}, fmt.Errorf("gpsd: connection closed before a fix")
}
