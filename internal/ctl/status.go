package ctl

import (
	"context"
	"io"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	DecodesServed  int64  `json:"decodes_served"`
	Clients        int    `json:"clients"`
	DefaultProfile string `json:"default_profile"`
	Sync           bool   `json:"sync"`
	FiltersCached  int    `json:"filters_cached"`
}

// Status fetches the server status and version and prints a summary, or
// the raw JSON when jsonOut is set.
func (c *Client) Status(ctx context.Context, w io.Writer, jsonOut bool) error {
	var s StatusResponse
	if err := c.getJSON(ctx, "/api/status", &s); err != nil {
		return err
	}
	var version map[string]string
	versionErr := c.getJSON(ctx, "/api/version", &version)

	if jsonOut {
		return printJSON(w, map[string]any{"status": s, "version": version})
	}

	p := newPrinter(w)
	p.println()
	p.println(p.header("  APTDEC STATUS"))
	p.println(p.rule(38))
	p.printf("  %-12s %s\n", p.colorize(dim, "Server:"), s.Name)
	if versionErr == nil {
		p.printf("  %-12s %s\n", p.colorize(dim, "Version:"), version["version"])
	}
	p.printf("  %-12s %s\n", p.colorize(dim, "State:"), p.colorize(stateColor(s.State), s.State))
	p.printf("  %-12s %s\n", p.colorize(dim, "Uptime:"), formatDuration(time.Duration(s.UptimeSeconds)*time.Second))
	p.printf("  %-12s %d\n", p.colorize(dim, "Decodes:"), s.DecodesServed)
	p.printf("  %-12s %s (sync %v)\n", p.colorize(dim, "Profile:"), s.DefaultProfile, s.Sync)
	p.printf("  %-12s %d\n", p.colorize(dim, "Watchers:"), s.Clients)
	p.printf("  %-12s %s\n", p.colorize(dim, "Host:"), c.BaseURL)
	p.println()
	return nil
}
