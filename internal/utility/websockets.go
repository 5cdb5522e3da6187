package utility

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RefreshMessage tells a client to re-fetch its adaptive view.
const RefreshMessage = "REFRESH"

const writeWait = 5 * time.Second

// Upgrader accepts any origin; CORS is enforced by the HTTP middleware.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub holds the open connections per user. A user may have several tabs open.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*websocket.Conn]struct{})}
}

// Register adds a connection for userID.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[userID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.clients[userID] = conns
	}
	conns[conn] = struct{}{}
	log.Info().Str("user_id", userID).Int("connections", len(conns)).Msg("WebSocket Client Connected")
}

// Unregister removes a connection (when they close the tab).
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(userID, conn)
}

func (h *Hub) removeLocked(userID string, conn *websocket.Conn) {
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		log.Info().Str("user_id", userID).Msg("WebSocket Client Disconnected")
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}

// Notify sends "REFRESH" to every connection of userID and returns how many
// received it. Connections that fail to write are closed and dropped.
func (h *Hub) Notify(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for conn := range h.clients[userID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(RefreshMessage)); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send WS message, removing client")
			conn.Close()
			h.removeLocked(userID, conn)
			continue
		}
		sent++
	}
	return sent
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}
