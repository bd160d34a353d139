package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrForbidden       = errors.New("product belongs to another user")
	ErrMissingVersion  = errors.New("no version specified")
	ErrVersionConflict = errors.New("version conflict: product has been modified")
	ErrProductExists   = errors.New("product already exists")
	ErrNameRequired    = errors.New("name is missing")
)

// maxReplaceAttempts bounds how often Update re-reads after losing a
// compare-and-replace to a writer outside this process.
const maxReplaceAttempts = 5

// VersionConflictError is returned by Update when the client presented a
// version older than the stored one. It matches ErrVersionConflict.
type VersionConflictError struct {
	Current int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s (current version %d)", ErrVersionConflict, e.Current)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// ProductInput carries the caller-supplied fields of a product.
type ProductInput struct {
	ID     string
	Name   string
	Amount float64
	Price  float64
	Data   json.RawMessage
}

type ListResult struct {
	Products     []models.Product
	LastModified time.Time
	NotModified  bool
}

// Notifier hears about every accepted change. It is called while the
// product's lock is held, so changes to one id arrive in version order and
// implementations must not call back into the service.
type Notifier interface {
	ProductCreated(p *models.Product)
	ProductUpdated(p *models.Product)
	ProductDeleted(owner uuid.UUID, id string)
}

type nopNotifier struct{}

func (nopNotifier) ProductCreated(*models.Product) {}
func (nopNotifier) ProductUpdated(*models.Product) {}
func (nopNotifier) ProductDeleted(uuid.UUID, string) {}

type Option func(*ProductService)

// WithNotifier publishes accepted changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *ProductService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// ProductService assigns versions, detects conflicting updates and keeps the
// collection watermark current.
type ProductService struct {
	store     store.Store
	watermark *Watermark
	locks     *keyedMutex
	notifier  Notifier
	now       func() time.Time
}

func NewProductService(st store.Store, watermark *Watermark, opts ...Option) *ProductService {
	if watermark == nil {
		watermark = &Watermark{}
	}
	s := &ProductService{
		store:     st,
		watermark: watermark,
		locks:     newKeyedMutex(),
		notifier:  nopNotifier{},
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProductService) Watermark() *Watermark {
	return s.watermark
}

// List returns the owner's products, or NotModified when marker proves the
// caller already holds the current collection state.
func (s *ProductService) List(ctx context.Context, owner uuid.UUID, marker *time.Time) (*ListResult, error) {
	if owner == uuid.Nil {
		return nil, ErrForbidden
	}
	if ShouldReturnCached(marker, s.watermark) {
		wm, _ := s.watermark.Load()
		return &ListResult{LastModified: wm, NotModified: true}, nil
	}

	products, err := s.store.Find(ctx, store.Filter{Owner: owner})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &ListResult{
		Products:     products,
		LastModified: s.watermark.InitIfUnset(s.now()),
	}, nil
}

func (s *ProductService) GetByID(ctx context.Context, id string, principal uuid.UUID) (*models.Product, error) {
	p, err := s.store.FindOne(ctx, store.Filter{ID: id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !CanAccess(p, principal) {
		return nil, ErrForbidden
	}
	return p, nil
}

// Create persists a new product at version 1 owned by owner. An empty
// in.ID gets a generated identifier.
func (s *ProductService) Create(ctx context.Context, in ProductInput, owner uuid.UUID) (*models.Product, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	p := &models.Product{
		ID:        id,
		Name:      in.Name,
		Amount:    in.Amount,
		Price:     in.Price,
		Data:      in.Data,
		Owner:     owner,
		Version:   1,
		UpdatedAt: s.now(),
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Insert(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrProductExists
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	s.watermark.Advance(p.UpdatedAt)
	s.notifier.ProductCreated(p)
	return p, nil
}

// Update replaces product id with in when clientVersion is not older than the
// stored version. Ownership is preserved and the version grows by exactly one.
// Updates to one id are serialized here; the store's compare-and-replace
// covers writers in other processes.
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput, clientVersion int, principal uuid.UUID) (*models.Product, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	current := 0
	for range maxReplaceAttempts {
		existing, err := s.store.FindOne(ctx, store.Filter{ID: id})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, err
		}
		if !CanAccess(existing, principal) {
			return nil, ErrForbidden
		}
		if clientVersion <= 0 {
			return nil, ErrMissingVersion
		}
		current = existing.Version
		if clientVersion < existing.Version {
			return nil, &VersionConflictError{Current: existing.Version}
		}

		updatedAt := s.now()
		if updatedAt.Before(existing.UpdatedAt) {
			updatedAt = existing.UpdatedAt
		}
		next := &models.Product{
			ID:        existing.ID,
			Name:      in.Name,
			Amount:    in.Amount,
			Price:     in.Price,
			Data:      in.Data,
			Owner:     existing.Owner,
			Version:   existing.Version + 1,
			UpdatedAt: updatedAt,
		}

		err = s.store.Replace(ctx, *existing, next)
		if errors.Is(err, store.ErrStale) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("replace product: %w", err)
		}
		s.watermark.Advance(next.UpdatedAt)
		s.notifier.ProductUpdated(next)
		return next, nil
	}

	// other processes kept winning the replace
	return nil, &VersionConflictError{Current: current}
}

// Delete removes product id if owner owns it. Deleting nothing is not an
// error. The watermark advances and the owner is notified either way.
func (s *ProductService) Delete(ctx context.Context, id string, owner uuid.UUID) (int64, error) {
	// a nil owner would turn the filter into "delete by id"
	if owner == uuid.Nil {
		return 0, ErrForbidden
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	n, err := s.store.Remove(ctx, store.Filter{ID: id, Owner: owner})
	s.watermark.Advance(s.now())
	if err != nil {
		return 0, fmt.Errorf("delete product: %w", err)
	}
	s.notifier.ProductDeleted(owner, id)
	return n, nil
}
