package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/database"
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"row_id", "id", "owner_id", "name", "amount", "price", "data", "version", "updated_at"}

func setupStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return New(&database.DB{Pool: mock}), mock
}

func TestStore_FindOne(t *testing.T) {
	st, mock := setupStore(t)
	ctx := context.Background()
	rowID, owner := uuid.New(), uuid.New()
	now := time.Now().UTC()
	data := json.RawMessage(`{"color":"red"}`)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \$1\s+LIMIT 1`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(rowID, "p1", owner, "Widget", 2.0, 3.5, data, 4, now))

	p, err := st.FindOne(ctx, store.Filter{ID: "p1"})

	require.NoError(t, err)
	assert.Equal(t, rowID, p.RowID)
	assert.Equal(t, owner, p.Owner)
	assert.Equal(t, 4, p.Version)
	assert.JSONEq(t, string(data), string(p.Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindOne_NotFound(t *testing.T) {
	st, mock := setupStore(t)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.FindOne(context.Background(), store.Filter{ID: "missing"})

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Find_ByOwner(t *testing.T) {
	st, mock := setupStore(t)
	owner := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM products WHERE owner_id = \$1\s+ORDER BY updated_at, id`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(uuid.New(), "a", owner, "A", 1.0, 1.0, json.RawMessage(nil), 1, now).
			AddRow(uuid.New(), "b", owner, "B", 1.0, 1.0, json.RawMessage(nil), 1, now.Add(time.Second)))

	got, err := st.Find(context.Background(), store.Filter{Owner: owner})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert(t *testing.T) {
	st, mock := setupStore(t)
	p := &models.Product{ID: "p1", Name: "Widget", Owner: uuid.New(), Version: 1, UpdatedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO products`).
		WithArgs(pgxmock.AnyArg(), p.ID, p.Owner, p.Name, p.Amount, p.Price, p.Data, p.Version, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.Insert(context.Background(), p)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.RowID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert_Duplicate(t *testing.T) {
	st, mock := setupStore(t)
	p := &models.Product{ID: "p1", Name: "Widget", Owner: uuid.New(), Version: 1, UpdatedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO products`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "products_id_key"})

	err := st.Insert(context.Background(), p)

	assert.ErrorIs(t, err, store.ErrAlreadyExists)
	assert.Equal(t, uuid.Nil, p.RowID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Replace(t *testing.T) {
	st, mock := setupStore(t)
	expected := models.Product{ID: "p1", RowID: uuid.New(), Version: 1}
	next := &models.Product{ID: "p1", Name: "renamed", Version: 2, UpdatedAt: time.Now().UTC()}

	mock.ExpectExec(`UPDATE products`).
		WithArgs(pgxmock.AnyArg(), next.Name, next.Amount, next.Price, next.Data, next.Version, next.UpdatedAt,
			expected.ID, expected.RowID, expected.Version).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.Replace(context.Background(), expected, next)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, next.RowID)
	assert.NotEqual(t, expected.RowID, next.RowID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Replace_Stale(t *testing.T) {
	st, mock := setupStore(t)
	expected := models.Product{ID: "p1", RowID: uuid.New(), Version: 1}
	next := &models.Product{ID: "p1", Name: "renamed", Version: 2}

	mock.ExpectExec(`UPDATE products`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.Replace(context.Background(), expected, next)

	assert.ErrorIs(t, err, store.ErrStale)
	assert.Equal(t, uuid.Nil, next.RowID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Remove(t *testing.T) {
	st, mock := setupStore(t)
	owner := uuid.New()

	mock.ExpectExec(`DELETE FROM products WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("p1", owner).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := st.Remove(context.Background(), store.Filter{ID: "p1", Owner: owner})

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapPostgresError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, store.ErrNotFound},
		{"duplicate id", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "products_id_key"}, store.ErrAlreadyExists},
		{"other unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "products_pkey"}, nil},
		{"plain error", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err)
			switch {
			case tt.err == nil:
				assert.NoError(t, got)
			case tt.target == nil:
				require.Error(t, got)
				assert.NotErrorIs(t, got, store.ErrAlreadyExists)
			default:
				assert.ErrorIs(t, got, tt.target)
			}
		})
	}
}
