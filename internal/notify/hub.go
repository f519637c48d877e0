// Package notify broadcasts check outcomes to websocket subscribers.
package notify

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koltyakov/siren/internal/domain"
)

// Message types sent on the stream.
const (
	TypeVerdict = "verdict"
	TypeError   = "error"
)

// Message is one JSON frame on the verdict stream.
type Message struct {
	Type    string               `json:"type"`
	Verdict *domain.VerdictEvent `json:"verdict,omitempty"`
	Error   *domain.ErrorEvent   `json:"error,omitempty"`
}

const defaultQueueSize = 16

// Hub fans out check outcomes to every connected websocket client. New
// clients receive the latest message first.
type Hub struct {
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	queueSize    int

	mu      sync.Mutex
	clients map[*writer]struct{}
	last    *Message
	closed  bool
}

// NewHub returns an empty hub. A nil logger discards logs.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger:       logger,
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		writeTimeout: defaultWriteTimeout,
		queueSize:    defaultQueueSize,
		clients:      make(map[*writer]struct{}),
	}
}

// PublishVerdict broadcasts a verdict event.
func (h *Hub) PublishVerdict(ev domain.VerdictEvent) {
	h.broadcast(Message{Type: TypeVerdict, Verdict: &ev})
}

// PublishError broadcasts a failed check.
func (h *Hub) PublishError(ev domain.ErrorEvent) {
	h.broadcast(Message{Type: TypeError, Error: &ev})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.last = &msg
	targets := make([]*writer, 0, len(h.clients))
	for w := range h.clients {
		targets = append(targets, w)
	}
	h.mu.Unlock()

	for _, w := range targets {
		if err := w.Send(msg); err != nil {
			h.logger.Warn("notify: dropping subscriber", "err", err)
			h.remove(w)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams messages until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("notify: upgrade failed", "err", err)
		return
	}
	cw := newConnWriter(conn, h.writeTimeout, h.queueSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cw.Close()
		return
	}
	h.clients[cw] = struct{}{}
	last := h.last
	h.mu.Unlock()
	h.logger.Debug("notify: subscriber connected", "remote", r.RemoteAddr)

	if last != nil {
		_ = cw.Send(*last)
	}

	// Reads only surface control frames and disconnects.
	go func() {
		defer h.remove(cw)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(w *writer) {
	h.mu.Lock()
	_, ok := h.clients[w]
	delete(h.clients, w)
	h.mu.Unlock()
	if ok {
		w.Close()
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := make([]*writer, 0, len(h.clients))
	for w := range h.clients {
		targets = append(targets, w)
	}
	h.clients = make(map[*writer]struct{})
	h.mu.Unlock()
	for _, w := range targets {
		w.Close()
	}
}
