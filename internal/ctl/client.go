package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/aptdec/internal/server"
)

// Client talks to an aptdec server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client with a short timeout for status calls.
// Decodes use their own context instead.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// getJSON sends a GET request and decodes the JSON response into dst.
func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, path); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// checkStatus turns a non-2xx response into an error carrying the server's
// message.
func checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("HTTP %s: %s", resp.Status, e.Error)
	}
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("HTTP %s: %s", resp.Status, msg)
	}
	return fmt.Errorf("HTTP %s from %s", resp.Status, path)
}

// RemoteResult is what the server reports alongside a decoded image.
type RemoteResult struct {
	Job         string
	Profile     string
	Lines       int
	SyncedLines int
	Warnings    string
	PNG         []byte
}

// Decode uploads a WAV recording and returns the PNG. Query keys are
// passed through: profile, sync, method, rotate.
func (c *Client) Decode(ctx context.Context, wav io.Reader, query url.Values) (*RemoteResult, error) {
	u := c.BaseURL + "/api/decode"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, wav)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	// Decoding a full pass takes longer than the status timeout.
	hc := *c.HTTP
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "/api/decode"); err != nil {
		return nil, err
	}
	png, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	r := &RemoteResult{
		Job:      resp.Header.Get(server.HeaderJob),
		Profile:  resp.Header.Get(server.HeaderProfile),
		Warnings: resp.Header.Get(server.HeaderWarnings),
		PNG:      png,
	}
	r.Lines, _ = strconv.Atoi(resp.Header.Get(server.HeaderLines))
	r.SyncedLines, _ = strconv.Atoi(resp.Header.Get(server.HeaderSyncedLines))
	return r, nil
}

// Summary is a one-line description of the result.
func (r *RemoteResult) Summary() string {
	s := fmt.Sprintf("job %s: %d lines (%d synced), profile %s, %s PNG", shortJob(r.Job), r.Lines, r.SyncedLines, r.Profile, formatBytes(int64(len(r.PNG))))
	if r.Warnings != "" {
		s += "; " + r.Warnings
	}
	return s
}

// printJSON prints v as indented JSON.
func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
