package handlers

import (
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/google/uuid"
)

// productNotifier forwards accepted product changes to the real-time hub.
type productNotifier struct {
	hub HubInterface
}

func NewProductNotifier(h HubInterface) services.Notifier {
	return &productNotifier{hub: h}
}

func (n *productNotifier) ProductCreated(p *models.Product) {
	n.hub.BroadcastProductCreated(toProductResponse(p))
}

func (n *productNotifier) ProductUpdated(p *models.Product) {
	n.hub.BroadcastProductUpdated(toProductResponse(p))
}

func (n *productNotifier) ProductDeleted(owner uuid.UUID, id string) {
	n.hub.NotifyProductDeleted(owner, id)
}
