package handlers

import (
	"github.com/dimitrije/product-api/internal/hub"
	"github.com/dimitrije/product-api/internal/middleware"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/rs/zerolog"
)

const clientBufferDefault = 256

// EventsHandler streams product events to a principal over Server-Sent Events.
type EventsHandler struct {
	hub        HubInterface
	bufferSize int
}

func NewEventsHandler(h HubInterface, bufferSize int) *EventsHandler {
	if bufferSize <= 0 {
		bufferSize = clientBufferDefault
	}
	return &EventsHandler{hub: h, bufferSize: bufferSize}
}

func (h *EventsHandler) Connect(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	client := &hub.Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan hub.Message, h.bufferSize),
	}
	if !h.hub.Register(client) {
		c.InternalServerError("event stream unavailable")
		return
	}
	defer h.hub.Unregister(client)

	log := zerolog.Ctx(c.Request.Context())
	log.Info().Str("client_id", client.ID).Msg("event stream opened")

	sseCtx := c.SSE()
	if err := sseCtx.SendJSON(map[string]string{
		"type":      "connected",
		"client_id": client.ID,
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg.Payload), msg.Type, msg.ID); err != nil {
				log.Debug().Err(err).Str("client_id", client.ID).Msg("event stream write failed")
				return
			}
		case <-done:
			log.Info().Str("client_id", client.ID).Msg("event stream closed")
			return
		}
	}
}
