package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ store.Store = (*Store)(nil)

const productColumns = `row_id, id, owner_id, name, amount, price, data, version, updated_at`

// Store persists products in a single SQLite table. Timestamps are stored as
// unix nanoseconds.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "products.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS products (
		row_id TEXT PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		price REAL NOT NULL DEFAULT 0,
		data BLOB,
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create products table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_products_owner_id ON products(owner_id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create owner index: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Find(ctx context.Context, f store.Filter) ([]models.Product, error) {
	where, args := whereClause(f)
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products`+where+` ORDER BY updated_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) FindOne(ctx context.Context, f store.Filter) (*models.Product, error) {
	where, args := whereClause(f)
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products`+where+` LIMIT 1`, args...)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) Insert(ctx context.Context, p *models.Product) error {
	rowID := uuid.New()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		rowID.String(), p.ID, p.Owner.String(), p.Name, p.Amount, p.Price,
		nullableData(p.Data), p.Version, p.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	p.RowID = rowID
	return nil
}

func (s *Store) Remove(ctx context.Context, f store.Filter) (int64, error) {
	where, args := whereClause(f)
	res, err := s.db.ExecContext(ctx, `DELETE FROM products`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Replace(ctx context.Context, expected models.Product, next *models.Product) error {
	rowID := uuid.New()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET row_id = ?, name = ?, amount = ?, price = ?, data = ?, version = ?, updated_at = ?
		WHERE id = ? AND row_id = ? AND version = ?`,
		rowID.String(), next.Name, next.Amount, next.Price, nullableData(next.Data),
		next.Version, next.UpdatedAt.UnixNano(),
		expected.ID, expected.RowID.String(), expected.Version)
	if err != nil {
		return fmt.Errorf("replace product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStale
	}
	next.RowID = rowID
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func whereClause(f store.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, f.ID)
	}
	if f.Owner != uuid.Nil {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.Owner.String())
	}
	if f.RowID != uuid.Nil {
		conds = append(conds, "row_id = ?")
		args = append(args, f.RowID.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p         models.Product
		rowID     string
		owner     string
		data      []byte
		updatedAt int64
	)
	if err := row.Scan(&rowID, &p.ID, &owner, &p.Name, &p.Amount, &p.Price, &data, &p.Version, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.RowID, err = uuid.Parse(rowID); err != nil {
		return nil, fmt.Errorf("decode row id: %w", err)
	}
	if p.Owner, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	if data != nil {
		p.Data = json.RawMessage(data)
	}
	p.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &p, nil
}

func nullableData(data json.RawMessage) any {
	if data == nil {
		return nil
	}
	return []byte(data)
}
