// ABOUTME: Tracks open client sessions and upgrades HTTP requests to WebSocket
// ABOUTME: Owns the dispatch context that keeps generations alive across disconnects

package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/machinefolk/composer-gateway/internal/channel"
	"github.com/machinefolk/composer-gateway/internal/store"
	"github.com/machinefolk/composer-gateway/internal/validate"
)

// Deps are the collaborators every session shares.
type Deps struct {
	Store     store.Store
	Channel   *channel.TokenChannel
	Generator Generator
	Catalog   validate.Catalog
	Notation  validate.NotationFunc
	Logger    *slog.Logger
}

// Hub accepts WebSocket connections and manages the set of open sessions.
type Hub struct {
	deps     Deps
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// dispatchCtx is handed to sessions for generation dispatch; cancelling
	// it (via Close) is a process-shutdown concern, not a per-client one.
	dispatchCtx context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates a session hub.
func NewHub(deps Deps) *Hub {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		deps:   deps,
		logger: deps.Logger.With("component", "session-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The composer page is same-origin; other origins get tunes
			// read-only over plain HTTP elsewhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dispatchCtx: ctx,
		cancel:      cancel,
		sessions:    make(map[string]*Session),
	}
}

// ServeWS upgrades the request and runs a session until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := newSession(newWSConn(conn), h.deps, h.dispatchCtx)
	h.add(sess)
	defer h.remove(sess)

	h.logger.Debug("session opened", "session_id", sess.ID, "remote", r.RemoteAddr)
	sess.run()
}

// SessionCount returns the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close terminates all open sessions and cancels in-flight dispatches.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sess := range h.sessions {
		sess.Close()
		delete(h.sessions, id)
	}
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.ID)
}
