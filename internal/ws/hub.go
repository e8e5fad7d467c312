package ws

import (
	"log"
	"sync"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
)

// Hub maintains per-conversation broadcast rooms. A client joins the room of
// every conversation it participates in at session start; delivery within a
// room is FIFO per connection.
type Hub struct {
	rooms map[int]map[*Client]bool
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int]map[*Client]bool)}
}

// Join subscribes a client to a conversation room.
func (h *Hub) Join(conversationID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][client] = true
}

// Leave removes a client from a conversation room.
func (h *Hub) Leave(conversationID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[conversationID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// LeaveAll removes a client from every room it joined.
func (h *Hub) LeaveAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conversationID, clients := range h.rooms {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// BroadcastToConversation sends an event to every client in the room,
// skipping the excluded user's connections. excludeUserID of 0 excludes
// nobody.
func (h *Hub) BroadcastToConversation(conversationID int, event models.Event, excludeUserID int) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if excludeUserID != 0 && client.UserID() == excludeUserID {
			continue
		}
		if !client.Send(event) {
			log.Printf("dropping %s event for slow connection %s", event.Type, client.ConnID())
		}
	}
}
