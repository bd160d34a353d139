package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

// Store keeps products in process memory, indexed by product id.
type Store struct {
	mu       sync.RWMutex
	products map[string]*models.Product
}

func New() *Store {
	return &Store{products: make(map[string]*models.Product)}
}

func (s *Store) Find(_ context.Context, f store.Filter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if f.Matches(p) {
			out = append(out, clone(p))
		}
	}
	slices.SortFunc(out, func(a, b models.Product) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) FindOne(_ context.Context, f store.Filter) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.ID != "" {
		p, ok := s.products[f.ID]
		if !ok || !f.Matches(p) {
			return nil, store.ErrNotFound
		}
		c := clone(p)
		return &c, nil
	}
	for _, p := range s.products {
		if f.Matches(p) {
			c := clone(p)
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Insert(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return store.ErrAlreadyExists
	}
	p.RowID = uuid.New()
	c := clone(p)
	s.products[p.ID] = &c
	return nil
}

func (s *Store) Remove(_ context.Context, f store.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.products {
		if f.Matches(p) {
			delete(s.products, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Replace(_ context.Context, expected models.Product, next *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[expected.ID]
	if !ok || cur.RowID != expected.RowID || cur.Version != expected.Version {
		return store.ErrStale
	}
	next.RowID = uuid.New()
	c := clone(next)
	delete(s.products, expected.ID)
	s.products[next.ID] = &c
	return nil
}

func (s *Store) Close() error { return nil }

func clone(p *models.Product) models.Product {
	c := *p
	if p.Data != nil {
		c.Data = slices.Clone(p.Data)
	}
	return c
}
