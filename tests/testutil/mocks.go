package testutil

import (
	"context"
	"time"

	"github.com/dimitrije/product-api/internal/hub"
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/dimitrije/product-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProductService mocks the ProductService
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context, owner uuid.UUID, marker *time.Time) (*services.ListResult, error) {
	args := m.Called(ctx, owner, marker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ListResult), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string, principal uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, in services.ProductInput, owner uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, in, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id string, in services.ProductInput, clientVersion int, principal uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id, in, clientVersion, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id string, owner uuid.UUID) (int64, error) {
	args := m.Called(ctx, id, owner)
	return args.Get(0).(int64), args.Error(1)
}

// MockHub mocks the notification hub
type MockHub struct {
	mock.Mock
}

func (m *MockHub) Register(client *hub.Client) bool {
	args := m.Called(client)
	return args.Bool(0)
}

func (m *MockHub) Unregister(client *hub.Client) {
	m.Called(client)
}

func (m *MockHub) BroadcastProductCreated(p dto.ProductResponse) {
	m.Called(p)
}

func (m *MockHub) BroadcastProductUpdated(p dto.ProductResponse) {
	m.Called(p)
}

func (m *MockHub) NotifyProductDeleted(owner uuid.UUID, id string) {
	m.Called(owner, id)
}
