// Package server exposes the decoder over HTTP: upload a WAV recording and
// get a PNG back, watch progress on a WebSocket event stream, scrape
// Prometheus metrics. It owns the service lifecycle and its IDLE/DECODING
// state.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/aptdec/internal/config"
	"github.com/large-farva/aptdec/internal/dsp"
	"github.com/large-farva/aptdec/internal/telemetry"
	"github.com/large-farva/aptdec/internal/ws"
)

const (
	StateBooting  = "BOOTING"
	StateIdle     = "IDLE"
	StateDecoding = "DECODING"
)

// Options holds everything the Server needs from the caller.
type Options struct {
	Logger *slog.Logger
	Cfg    config.Config
	// Bind overrides Cfg.Server.Bind when set.
	Bind string
	// Hub is created when nil.
	Hub *ws.Hub
	// Heartbeat is the event stream keepalive interval, 10s when zero.
	Heartbeat time.Duration
	// Version is reported by /api/version.
	Version map[string]string
}

// Server is the decode service.
type Server struct {
	log       *slog.Logger
	cfg       config.Config
	bind      string
	heartbeat time.Duration
	version   map[string]string
	hub       *ws.Hub
	cache     *dsp.FilterCache
	metrics   *metrics
	http      *http.Server

	startedAt time.Time
	stateMu   sync.Mutex
	state     string
	active    int
	served    atomic.Int64
}

// New creates a Server in the BOOTING state. Call Run to start serving, or
// mount Handler in a test server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	hub := opts.Hub
	if hub == nil {
		hub = ws.NewHub(log, false)
	}
	bind := opts.Bind
	if bind == "" {
		bind = opts.Cfg.Server.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8080"
	}
	hb := opts.Heartbeat
	if hb <= 0 {
		hb = 10 * time.Second
	}
	s := &Server{
		log:       log,
		cfg:       opts.Cfg,
		bind:      bind,
		heartbeat: hb,
		version:   opts.Version,
		hub:       hub,
		cache:     dsp.NewFilterCache(),
		startedAt: time.Now(),
		state:     StateBooting,
	}
	s.metrics = newMetrics(func() float64 { return float64(hub.Clients()) })
	return s
}

// Hub returns the event hub, for wiring log forwarding.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/profiles", s.handleProfiles)
	mux.HandleFunc("POST /api/decode", s.handleDecode)
	mux.Handle("GET /ws", s.hub.Handler())
	mux.Handle("GET /metrics", s.metrics.handler())
	return mux
}

// Run starts the hub, the heartbeat and the HTTP server. It blocks until
// ctx is cancelled or the server fails; a clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("listening", "url", "http://"+ln.Addr().String())

	go s.hub.Run(ctx)
	s.transition(StateIdle)
	go s.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		s.log.Info("shutdown requested")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutCtx)
	}()

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// State returns the current state string.
func (s *Server) State() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// transition updates the state and broadcasts the change.
func (s *Server) transition(to string) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.stateMu.Unlock()
	if from == to {
		return
	}
	s.hub.BroadcastJSON(telemetry.NewStateTransition(from, to))
}

// begin and end bracket a decode; the state is DECODING while any decode
// runs.
func (s *Server) begin() {
	s.stateMu.Lock()
	s.active++
	first := s.active == 1
	s.stateMu.Unlock()
	s.metrics.inFlight.Inc()
	if first {
		s.transition(StateDecoding)
	}
}

func (s *Server) end() {
	s.stateMu.Lock()
	s.active--
	last := s.active == 0
	s.stateMu.Unlock()
	s.metrics.inFlight.Dec()
	s.served.Add(1)
	if last {
		s.transition(StateIdle)
	}
}

func (s *Server) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(s.heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.hub.BroadcastJSON(telemetry.NewHeartbeat(s.State(), time.Since(s.startedAt), s.hub.Clients()))
		}
	}
}
