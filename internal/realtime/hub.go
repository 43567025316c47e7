// Package realtime fans application events out to connected websocket
// clients so the UI can react without polling.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

// Event kinds pushed over the socket.
const (
	EventToast       = "toast"
	EventNavigate    = "navigate"
	EventAchievement = "achievement_unlocked"
	EventStateStale  = "state_stale"
)

// Event is the wire envelope for a pushed update.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// Client wraps a socket with a write lock. gorilla/websocket allows one
// concurrent writer per connection, so all pushes go through write.
type Client struct {
	Conn *websocket.Conn

	mu sync.Mutex
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected clients and broadcasts events to all of them.
type Hub struct {
	log     *zap.Logger
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{log: logger, clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// ClientCount reports how many sockets are attached.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the event to every connected client. Write failures
// are logged and the client is left for the read loop to reap.
func (h *Hub) Broadcast(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("kind", event.Kind), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.write(msg); err != nil {
			h.log.Warn("failed to push event", zap.String("kind", event.Kind), zap.Error(err))
		}
	}
}

// Toast pushes a transient UI message.
func (h *Hub) Toast(text string) {
	h.Broadcast(Event{Kind: EventToast, Payload: map[string]string{"text": text}})
}

// Navigate asks the UI to switch pages.
func (h *Hub) Navigate(page model.Page) {
	h.Broadcast(Event{Kind: EventNavigate, Payload: map[string]string{"page": string(page)}})
}

// AchievementUnlocked announces a freshly earned achievement.
func (h *Hub) AchievementUnlocked(id, title string) {
	h.Broadcast(Event{Kind: EventAchievement, Payload: map[string]string{"id": id, "title": title}})
}

// StateStale tells clients to refetch the application state.
func (h *Hub) StateStale() {
	h.Broadcast(Event{Kind: EventStateStale})
}
