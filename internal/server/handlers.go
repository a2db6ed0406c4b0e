package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/dsp"
	"github.com/large-farva/aptdec/internal/imageio"
	"github.com/large-farva/aptdec/internal/telemetry"
	"github.com/large-farva/aptdec/internal/wavio"
)

// Response headers of POST /api/decode.
const (
	HeaderJob         = "X-Aptdec-Job"
	HeaderProfile     = "X-Aptdec-Profile"
	HeaderLines       = "X-Aptdec-Lines"
	HeaderSyncedLines = "X-Aptdec-Synced-Lines"
	HeaderWarnings    = "X-Aptdec-Warnings"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            "aptdec",
		"state":           s.State(),
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"decodes_served":  s.served.Load(),
		"clients":         s.hub.Clients(),
		"default_profile": s.cfg.Decode.Profile,
		"sync":            s.cfg.Decode.Sync,
		"filters_cached":  s.cache.Len(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	var out []apt.Profile
	for _, name := range s.cfg.ProfileNames() {
		p, err := s.cfg.Profile(name)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default":  s.cfg.Decode.Profile,
		"profiles": out,
	})
}

// decodeRequest is the parsed query of POST /api/decode.
type decodeRequest struct {
	profile apt.Profile
	sync    apt.SyncConfig
	rotate  bool
}

func (s *Server) parseDecodeRequest(r *http.Request) (decodeRequest, error) {
	q := r.URL.Query()
	var req decodeRequest

	name := q.Get("profile")
	if name == "" {
		name = s.cfg.Decode.Profile
	}
	p, err := s.cfg.Profile(name)
	if err != nil {
		return req, err
	}
	req.profile = p

	sc, err := s.cfg.SyncSettings()
	if err != nil {
		return req, err
	}
	if v := q.Get("sync"); v != "" {
		if sc.Enabled, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("sync: %w", err)
		}
	}
	if v := q.Get("method"); v != "" {
		if sc.Method, err = apt.ParseCorrelationMethod(v); err != nil {
			return req, err
		}
	}
	req.sync = sc

	if v := q.Get("rotate"); v != "" {
		if req.rotate, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("rotate: %w", err)
		}
	}
	return req, nil
}

// handleDecode takes a WAV body and replies with the decoded PNG. Query
// parameters: profile, sync (bool), method (direct|fft), rotate (bool).
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseDecodeRequest(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := int64(s.cfg.Server.MaxUploadMB) << 20
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, fmt.Sprintf("recording larger than %d MB", s.cfg.Server.MaxUploadMB), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	sig, info, err := wavio.Read(bytes.NewReader(body))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, wavio.ErrNotWAV) {
			status = http.StatusUnsupportedMediaType
		}
		jsonError(w, err.Error(), status)
		return
	}

	job := uuid.NewString()
	log := s.log.With("job", job)
	log.Info("decode requested", "profile", req.profile.Name, "rate", int(info.Rate), "seconds", sig.Duration().Seconds(), "sync", req.sync.Enabled)
	s.hub.BroadcastJSON(telemetry.NewDecodeStart(job, req.profile.Name, int(info.Rate), sig.Duration().Seconds()))

	s.begin()
	start := time.Now()
	res, err := s.decode(r.Context(), job, req, sig)
	took := time.Since(start)
	s.end()
	s.hub.BroadcastJSON(telemetry.NewDecodeDone(job, res, err, took))
	s.record(req.profile.Name, res, err, took, sig.Duration().Seconds())

	w.Header().Set(HeaderJob, job)
	w.Header().Set(HeaderProfile, req.profile.Name)
	if err != nil {
		log.Warn("decode failed", "err", err)
		jsonError(w, err.Error(), decodeStatus(err))
		return
	}

	w.Header().Set(HeaderLines, strconv.Itoa(len(res.Lines)))
	w.Header().Set(HeaderSyncedLines, strconv.Itoa(res.Frame.SyncedLines()))
	if len(res.Warnings) > 0 {
		msgs := make([]string, len(res.Warnings))
		for i, wn := range res.Warnings {
			msgs[i] = wn.Error()
		}
		w.Header().Set(HeaderWarnings, strings.Join(msgs, "; "))
	}
	if len(res.Lines) == 0 {
		jsonError(w, "recording is too short to hold a single line", http.StatusUnprocessableEntity)
		return
	}

	lines := res.Lines
	if req.rotate {
		if lines, err = imageio.Rotate(lines, apt.ChannelPixels); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	var png bytes.Buffer
	if err := imageio.Encode(&png, lines); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(png.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png.Bytes())
}

func (s *Server) decode(ctx context.Context, job string, req decodeRequest, sig dsp.Signal) (*apt.Result, error) {
	d := apt.NewDecoder(req.profile)
	d.Sync = req.sync
	d.Workers = s.cfg.Workers()
	d.Cache = s.cache
	d.Log = s.log.With("job", job)
	d.Progress = telemetry.ProgressFunc(s.hub, job)
	return d.Decode(ctx, sig)
}

func (s *Server) record(profile string, res *apt.Result, err error, took time.Duration, audioSecs float64) {
	s.metrics.decodes.WithLabelValues(resultLabel(res, err)).Inc()
	if err != nil {
		return
	}
	s.metrics.duration.WithLabelValues(profile).Observe(took.Seconds())
	s.metrics.lines.Add(float64(len(res.Lines)))
	s.metrics.syncedLines.Add(float64(res.Frame.SyncedLines()))
	s.metrics.audioSecs.Add(audioSecs)
}

func resultLabel(res *apt.Result, err error) string {
	if err != nil {
		return "error"
	}
	for _, w := range res.Warnings {
		if errors.Is(w, dsp.ErrDegenerate) {
			return "degenerate"
		}
	}
	for _, w := range res.Warnings {
		if errors.Is(w, dsp.ErrNoSync) {
			return "no_sync"
		}
	}
	return "ok"
}

// decodeStatus maps decoder errors to HTTP status codes.
func decodeStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, dsp.ErrConfig), errors.Is(err, dsp.ErrInvalidSample):
		return http.StatusBadRequest
	case errors.Is(err, dsp.ErrOverflow):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
