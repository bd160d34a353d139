package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dimitrije/product-api/internal/metrics"
	"github.com/dimitrije/product-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	EventProductCreated = "product/created"
	EventProductUpdated = "product/updated"
	EventProductDeleted = "product/deleted"
)

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message is one encoded event queued for a client.
type Message struct {
	ID      string
	Type    string
	Payload []byte
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan Message
}

type envelope struct {
	// Nil means every connected client.
	owner uuid.UUID
	msg   Message
}

// Hub tracks real-time connections by principal and fans events out to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *envelope
	done       chan struct{}
	mu         sync.RWMutex

	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewHub(m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *envelope, 256),
		done:       make(chan struct{}),
		metrics:    m,
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled. On exit
// every client's Send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetClients(n)
			h.log.Debug().Str("client_id", client.ID).Stringer("user_id", client.UserID).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetClients(n)
			h.log.Debug().Str("client_id", client.ID).Msg("client disconnected")

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) deliver(env *envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if env.owner != uuid.Nil && client.UserID != env.owner {
			continue
		}
		select {
		case client.Send <- env.msg:
			h.metrics.EventDelivered(env.msg.Type)
		default:
			// Client buffer full, skip
			h.metrics.EventDropped(env.msg.Type)
			h.log.Warn().Str("client_id", client.ID).Str("event", env.msg.Type).Msg("client buffer full, event dropped")
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.mu.Unlock()
	close(h.done)
	h.metrics.SetClients(0)
}

// Register adds client. It returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastProductCreated notifies every connected client.
func (h *Hub) BroadcastProductCreated(p dto.ProductResponse) {
	h.emit(uuid.Nil, EventProductCreated, p)
}

// BroadcastProductUpdated notifies every connected client.
func (h *Hub) BroadcastProductUpdated(p dto.ProductResponse) {
	h.emit(uuid.Nil, EventProductUpdated, p)
}

// NotifyProductDeleted notifies only the connections of owner.
func (h *Hub) NotifyProductDeleted(owner uuid.UUID, id string) {
	if owner == uuid.Nil {
		return
	}
	h.emit(owner, EventProductDeleted, dto.ProductDeletedEvent{ID: id})
}

func (h *Hub) emit(owner uuid.UUID, eventType string, data any) {
	event := Event{
		ID:   ulid.Make().String(),
		Type: eventType,
		Data: data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	env := &envelope{
		owner: owner,
		msg:   Message{ID: event.ID, Type: eventType, Payload: payload},
	}
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}
