package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"trivia-game/internal/models"
)

// Hub tracks live connections and the room groups they are joined to.
type Hub struct {
	clients map[string]*WebSocketClient
	rooms   map[string]map[string]*WebSocketClient
	mu      sync.RWMutex
}

type WebSocketClient struct {
	ID   string
	Send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*WebSocketClient),
		rooms:   make(map[string]map[string]*WebSocketClient),
	}
}

func NewClient(id string, buffer int) *WebSocketClient {
	return &WebSocketClient{ID: id, Send: make(chan []byte, buffer)}
}

func (h *Hub) Register(client *WebSocketClient) {
	h.mu.Lock()
	if existing, ok := h.clients[client.ID]; ok && existing.Send != client.Send {
		log.Warn().Str("conn", client.ID).Msg("client already registered, closing old send channel")
		close(existing.Send)
	}
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	log.Debug().Str("conn", client.ID).Int("connections", count).Msg("client registered")
}

// Unregister drops the client from the hub and every room group and closes
// its send channel.
func (h *Hub) Unregister(client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client.ID)
}

func (h *Hub) dropLocked(connID string) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for code, members := range h.rooms {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	close(client.Send)
	log.Debug().Str("conn", connID).Int("connections", len(h.clients)).Msg("client unregistered")
}

func (h *Hub) JoinRoom(connID, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		log.Warn().Str("conn", connID).Str("room", code).Msg("join for unknown connection")
		return
	}
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[string]*WebSocketClient)
	}
	h.rooms[code][connID] = client
}

func (h *Hub) LeaveRoom(connID, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[code]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, code)
	}
}

func (h *Hub) EmitTo(connID, event string, payload interface{}) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	client, exists := h.clients[connID]
	h.mu.RUnlock()
	if !exists {
		return
	}
	h.deliver([]*WebSocketClient{client}, data)
}

func (h *Hub) EmitToRoom(code, event string, payload interface{}) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	members := make([]*WebSocketClient, 0, len(h.rooms[code]))
	for _, client := range h.rooms[code] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	h.deliver(members, data)
	log.Debug().Str("room", code).Str("event", event).Int("clients", len(members)).Msg("broadcast")
}

// deliver queues data without blocking; a client whose buffer is full is
// dropped.
func (h *Hub) deliver(targets []*WebSocketClient, data []byte) {
	var slow []string
	h.mu.RLock()
	for _, client := range targets {
		if _, live := h.clients[client.ID]; !live {
			continue
		}
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client.ID)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range slow {
		log.Warn().Str("conn", id).Msg("send buffer full, dropping client")
		h.dropLocked(id)
	}
	h.mu.Unlock()
}

// Members returns the connection ids joined to a room.
func (h *Hub) Members(code string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[code]))
	for id := range h.rooms[code] {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(event string, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(models.GameEvent{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return nil, false
	}
	return data, true
}
