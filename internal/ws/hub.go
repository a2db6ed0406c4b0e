// Package ws fans decoder events out to WebSocket clients. Components
// broadcast JSON through the hub; a single goroutine owns the client set,
// writes every message and sends keepalive pings so stale connections are
// dropped.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingEvery    = 20 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
)

// Hub manages WebSocket clients. It is safe for concurrent use; register,
// unregister and broadcast all go through channels.
type Hub struct {
	log        *slog.Logger
	clients    map[*websocket.Conn]struct{}
	count      atomic.Int32
	dropped    atomic.Int64
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	upgrader   websocket.Upgrader
}

// NewHub allocates a hub. Call Run in a goroutine to start the event loop.
// When sameOrigin is true, browsers from other origins are refused.
func NewHub(log *slog.Logger, sameOrigin bool) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	h := &Hub{
		log:        log,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if !sameOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Dropped returns how many broadcasts were discarded because the queue was
// full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Run processes registrations, broadcasts and keepalive pings until ctx is
// cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int32(len(h.clients)))
			h.log.Debug("ws client connected", "remote", c.RemoteAddr().String(), "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			h.each(websocket.TextMessage, msg, writeTimeout)

		case <-ping.C:
			h.each(websocket.PingMessage, nil, writeTimeout)
		}
	}
}

func (h *Hub) each(kind int, msg []byte, timeout time.Duration) {
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.WriteMessage(kind, msg); err != nil {
			h.log.Debug("ws write failed", "remote", c.RemoteAddr().String(), "err", err)
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	delete(h.clients, c)
	h.count.Store(int32(len(h.clients)))
	_ = c.Close()
}

// Handler upgrades requests to WebSocket connections and registers them.
// Clients only listen; anything they send is read and discarded so pongs
// and close frames are processed.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied.
			h.log.Debug("ws upgrade failed", "err", err)
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(readTimeout))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// BroadcastJSON queues v for every client. When the queue is full the
// message is dropped rather than blocking the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("ws marshal failed", "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.dropped.Add(1)
	}
}
