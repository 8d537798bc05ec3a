// Package netsync relays session state between processes over websockets.
// A Hub fans agent updates out to every other peer and, when it owns a
// phase clock, broadcasts the authoritative phase and time remaining.
package netsync

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/game"
)

// Envelope is one websocket frame.
type Envelope struct {
	From   string           `json:"from,omitempty"`
	Events []game.SyncEvent `json:"events"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub owns the connected peers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	clock       *game.PhaseClock // Guarded by mu; nil when the hub only relays
	frozen      bool

	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	interval     time.Duration
}

// NewHub creates a hub. clock may be nil for a pure relay.
func NewHub(cfg config.RelayConfig, clock *game.PhaseClock) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		clock:       clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		writeTimeout: seconds(cfg.WriteTimeout),
		interval:     seconds(cfg.PhaseBroadcast),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ServeHTTP upgrades a peer connection and relays its frames until it drops.
// Peers identify themselves with the id query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrade failed", "peer", id, "error", err)
		return
	}
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	if old, ok := h.subscribers[id]; ok {
		old.conn.Close()
	}
	h.subscribers[id] = sub
	peers := len(h.subscribers)
	welcome, hasClock := h.phaseLocked()
	h.mu.Unlock()
	slog.Info("peer connected", "peer", id, "peers", peers)

	if hasClock {
		data, err := json.Marshal(welcome)
		if err == nil {
			err = sub.write(data, h.writeTimeout)
		}
		if err != nil {
			h.disconnect(id, sub)
			return
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.disconnect(id, sub)
			return
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			slog.Debug("discarding malformed frame", "peer", id, "error", err)
			continue
		}
		env.From = id
		h.observe(env)
		h.Broadcast(env, id)
	}
}

// observe applies relayed freezes to the hub's own clock.
func (h *Hub) observe(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range env.Events {
		if e.Kind == game.SyncFreeze {
			h.frozen = e.Frozen
		}
	}
}

func (h *Hub) disconnect(id string, sub *subscriber) {
	h.mu.Lock()
	if h.subscribers[id] == sub {
		delete(h.subscribers, id)
	}
	peers := len(h.subscribers)
	h.mu.Unlock()
	sub.conn.Close()
	slog.Info("peer disconnected", "peer", id, "peers", peers)
}

// Broadcast sends env to every peer except the one named by except.
// Peers that cannot be written to are dropped.
func (h *Hub) Broadcast(env Envelope, except string) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal envelope", "error", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		if id != except {
			subs[id] = sub
		}
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.write(data, h.writeTimeout); err != nil {
			slog.Warn("failed to send update", "peer", id, "error", err)
			h.disconnect(id, sub)
		}
	}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// phaseLocked builds the phase broadcast. Callers hold h.mu.
func (h *Hub) phaseLocked() (Envelope, bool) {
	if h.clock == nil {
		return Envelope{}, false
	}
	return Envelope{Events: []game.SyncEvent{{
		Kind:        game.SyncPhase,
		Phase:       h.clock.Phase().String(),
		RemainingMS: h.clock.Remaining().Milliseconds(),
	}}}, true
}

// Run advances the hub's clock in real time and broadcasts the phase on
// every interval until ctx is done. It returns immediately for a pure relay.
func (h *Hub) Run(ctx context.Context) {
	if h.clock == nil || h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.mu.Lock()
			if !h.frozen && h.clock.Advance(now.Sub(last)) {
				slog.Info("phase", "phase", h.clock.Phase().String(), "day", h.clock.Day())
			}
			env, _ := h.phaseLocked()
			h.mu.Unlock()
			last = now
			h.Broadcast(env, "")
		}
	}
}
