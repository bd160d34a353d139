// Package store defines the persistent product collection consumed by the
// product service. Implementations live in the memory, postgres and sqlite
// subpackages.
package store

import (
	"context"
	"errors"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrAlreadyExists = errors.New("product already exists")
	// ErrStale is returned by Replace when the expected row is no longer the
	// current row for the product id.
	ErrStale = errors.New("stale product row")
)

// Filter selects products. Zero-valued fields are ignored, so the zero Filter
// matches every product.
type Filter struct {
	ID    string
	Owner uuid.UUID
	RowID uuid.UUID
}

// Matches reports whether p satisfies every non-zero field of f.
func (f Filter) Matches(p *models.Product) bool {
	if f.ID != "" && p.ID != f.ID {
		return false
	}
	if f.Owner != uuid.Nil && p.Owner != f.Owner {
		return false
	}
	if f.RowID != uuid.Nil && p.RowID != f.RowID {
		return false
	}
	return true
}

// Store is a filtered product collection. It is not required to serialize
// concurrent callers beyond the guarantees documented on Replace.
type Store interface {
	Find(ctx context.Context, f Filter) ([]models.Product, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, f Filter) (*models.Product, error)
	// Insert assigns a new RowID and persists p. A duplicate ID yields ErrAlreadyExists.
	Insert(ctx context.Context, p *models.Product) error
	// Remove deletes every match and returns how many rows went away.
	Remove(ctx context.Context, f Filter) (int64, error)
	// Replace atomically swaps the row identified by expected.ID, expected.RowID
	// and expected.Version for next, assigning next a fresh RowID. When that row
	// is gone or has moved on, Replace returns ErrStale and changes nothing.
	Replace(ctx context.Context, expected models.Product, next *models.Product) error
	Close() error
}
