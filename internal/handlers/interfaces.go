package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/product-api/internal/hub"
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/dimitrije/product-api/pkg/dto"
	"github.com/google/uuid"
)

// ProductServiceInterface defines the methods used by handlers from ProductService
type ProductServiceInterface interface {
	List(ctx context.Context, owner uuid.UUID, marker *time.Time) (*services.ListResult, error)
	GetByID(ctx context.Context, id string, principal uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, in services.ProductInput, owner uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, id string, in services.ProductInput, clientVersion int, principal uuid.UUID) (*models.Product, error)
	Delete(ctx context.Context, id string, owner uuid.UUID) (int64, error)
}

// HubInterface defines the methods used by handlers from hub.Hub
type HubInterface interface {
	Register(client *hub.Client) bool
	Unregister(client *hub.Client)
	BroadcastProductCreated(p dto.ProductResponse)
	BroadcastProductUpdated(p dto.ProductResponse)
	NotifyProductDeleted(owner uuid.UUID, id string)
}

var (
	_ ProductServiceInterface = (*services.ProductService)(nil)
	_ HubInterface            = (*hub.Hub)(nil)
)
