package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/dimitrije/product-api/internal/database"
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ store.Store = (*Store)(nil)

const productColumns = `row_id, id, owner_id, name, amount, price, data, version, updated_at`

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Find(ctx context.Context, f store.Filter) ([]models.Product, error) {
	where, args := whereClause(f)
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products`+where+`
		ORDER BY updated_at, id
	`, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		products = append(products, *p)
	}
	return products, mapPostgresError(rows.Err())
}

func (s *Store) FindOne(ctx context.Context, f store.Filter) (*models.Product, error) {
	where, args := whereClause(f)
	row := s.db.Pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products`+where+`
		LIMIT 1
	`, args...)
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return p, nil
}

func (s *Store) Insert(ctx context.Context, p *models.Product) error {
	rowID := uuid.New()
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rowID, p.ID, p.Owner, p.Name, p.Amount, p.Price, p.Data, p.Version, p.UpdatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	p.RowID = rowID
	return nil
}

func (s *Store) Remove(ctx context.Context, f store.Filter) (int64, error) {
	where, args := whereClause(f)
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM products`+where, args...)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// Replace swaps the row in a single conditional UPDATE, so two writers that
// read the same row cannot both succeed.
func (s *Store) Replace(ctx context.Context, expected models.Product, next *models.Product) error {
	rowID := uuid.New()
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE products
		SET row_id = $1, name = $2, amount = $3, price = $4, data = $5, version = $6, updated_at = $7
		WHERE id = $8 AND row_id = $9 AND version = $10
	`, rowID, next.Name, next.Amount, next.Price, next.Data, next.Version, next.UpdatedAt,
		expected.ID, expected.RowID, expected.Version)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrStale
	}
	next.RowID = rowID
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func whereClause(f store.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.ID != "" {
		args = append(args, f.ID)
		conds = append(conds, fmt.Sprintf("id = $%d", len(args)))
	}
	if f.Owner != uuid.Nil {
		args = append(args, f.Owner)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.RowID != uuid.Nil {
		args = append(args, f.RowID)
		conds = append(conds, fmt.Sprintf("row_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(
		&p.RowID, &p.ID, &p.Owner, &p.Name, &p.Amount, &p.Price,
		&p.Data, &p.Version, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
