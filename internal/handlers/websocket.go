package handlers

import (
	"github.com/dimitrije/product-api/internal/hub"
	"github.com/dimitrije/product-api/internal/middleware"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/websocket"
	"github.com/rs/zerolog"
)

// WebSocketHandler streams product events to a principal over a WebSocket.
// Inbound frames are read only to detect the peer going away.
type WebSocketHandler struct {
	hub        HubInterface
	bufferSize int
}

func NewWebSocketHandler(h HubInterface, bufferSize int) *WebSocketHandler {
	if bufferSize <= 0 {
		bufferSize = clientBufferDefault
	}
	return &WebSocketHandler{hub: h, bufferSize: bufferSize}
}

func (h *WebSocketHandler) Connect(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	log := zerolog.Ctx(c.Request.Context())

	conn, err := websocket.Upgrade(c)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() {
		if err := conn.Close(websocket.CloseNormalClosure, ""); err != nil {
			log.Debug().Err(err).Msg("websocket close error")
		}
	}()

	client := &hub.Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan hub.Message, h.bufferSize),
	}
	if !h.hub.Register(client) {
		return
	}
	defer h.hub.Unregister(client)

	if err := conn.WriteJSON(map[string]string{
		"type":      "connected",
		"client_id": client.ID,
	}); err != nil {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := conn.WriteText(string(msg.Payload)); err != nil {
				log.Debug().Err(err).Str("client_id", client.ID).Msg("websocket write failed")
				return
			}
		case <-gone:
			return
		}
	}
}
