package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	store   store.Store
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(st store.Store) *Fixtures {
	return &Fixtures{store: st}
}

// CreateProduct inserts a version 1 product owned by owner
func (f *Fixtures) CreateProduct(t *testing.T, owner uuid.UUID, opts ...ProductOption) *models.Product {
	t.Helper()
	f.counter++

	p := &models.Product{
		ID:        fmt.Sprintf("product-%d", f.counter),
		Name:      fmt.Sprintf("Test Product %d", f.counter),
		Amount:    1,
		Price:     9.99,
		Owner:     owner,
		Version:   1,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := f.store.Insert(context.Background(), p); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}

	return p
}

// ProductOption configures a test product
type ProductOption func(*models.Product)

func WithProductID(id string) ProductOption {
	return func(p *models.Product) {
		p.ID = id
	}
}

func WithProductName(name string) ProductOption {
	return func(p *models.Product) {
		p.Name = name
	}
}

func WithProductData(data json.RawMessage) ProductOption {
	return func(p *models.Product) {
		p.Data = data
	}
}

func WithVersion(version int) ProductOption {
	return func(p *models.Product) {
		p.Version = version
	}
}
