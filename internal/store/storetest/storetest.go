// Package storetest holds behaviour tests shared by every store.Store backend.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store from newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("InsertAndFindOne", func(t *testing.T) { testInsertAndFindOne(t, newStore(t)) })
	t.Run("InsertDuplicate", func(t *testing.T) { testInsertDuplicate(t, newStore(t)) })
	t.Run("FindByOwner", func(t *testing.T) { testFindByOwner(t, newStore(t)) })
	t.Run("FindOneMissing", func(t *testing.T) { testFindOneMissing(t, newStore(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("ReplaceStale", func(t *testing.T) { testReplaceStale(t, newStore(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newStore(t)) })
}

func product(id string, owner uuid.UUID, at time.Time) *models.Product {
	return &models.Product{
		ID:        id,
		Name:      "product " + id,
		Amount:    3,
		Price:     9.5,
		Owner:     owner,
		Version:   1,
		UpdatedAt: at,
	}
}

func baseTime() time.Time {
	return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
}

func testInsertAndFindOne(t *testing.T, st store.Store) {
	ctx := context.Background()
	p := product("p1", uuid.New(), baseTime())
	p.Data = json.RawMessage(`{"color":"red"}`)

	require.NoError(t, st.Insert(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.RowID)

	got, err := st.FindOne(ctx, store.Filter{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, p.RowID, got.RowID)
	assert.Equal(t, p.Owner, got.Owner)
	assert.Equal(t, "product p1", got.Name)
	assert.Equal(t, 3.0, got.Amount)
	assert.Equal(t, 9.5, got.Price)
	assert.Equal(t, 1, got.Version)
	assert.JSONEq(t, `{"color":"red"}`, string(got.Data))
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))

	got, err = st.FindOne(ctx, store.Filter{ID: "p1", RowID: p.RowID})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func testInsertDuplicate(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, product("p1", uuid.New(), baseTime())))

	err := st.Insert(ctx, product("p1", uuid.New(), baseTime()))

	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testFindByOwner(t *testing.T, st store.Store) {
	ctx := context.Background()
	bea, betty := uuid.New(), uuid.New()
	at := baseTime()

	require.NoError(t, st.Insert(ctx, product("b2", bea, at.Add(2*time.Second))))
	require.NoError(t, st.Insert(ctx, product("t1", betty, at)))
	require.NoError(t, st.Insert(ctx, product("b1", bea, at.Add(time.Second))))

	got, err := st.Find(ctx, store.Filter{Owner: bea})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "b2", got[1].ID)

	got, err = st.Find(ctx, store.Filter{Owner: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testFindOneMissing(t *testing.T, st store.Store) {
	_, err := st.FindOne(context.Background(), store.Filter{ID: "missing"})

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testReplace(t *testing.T, st store.Store) {
	ctx := context.Background()
	p := product("p1", uuid.New(), baseTime())
	require.NoError(t, st.Insert(ctx, p))

	next := *p
	next.Name = "renamed"
	next.Version = 2
	next.UpdatedAt = p.UpdatedAt.Add(time.Second)

	require.NoError(t, st.Replace(ctx, *p, &next))
	assert.NotEqual(t, p.RowID, next.RowID)

	got, err := st.FindOne(ctx, store.Filter{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, next.RowID, got.RowID)
}

func testReplaceStale(t *testing.T, st store.Store) {
	ctx := context.Background()
	p := product("p1", uuid.New(), baseTime())
	require.NoError(t, st.Insert(ctx, p))

	first := *p
	first.Version = 2
	require.NoError(t, st.Replace(ctx, *p, &first))

	second := *p
	second.Name = "lost"
	second.Version = 2
	err := st.Replace(ctx, *p, &second)
	assert.ErrorIs(t, err, store.ErrStale)

	err = st.Replace(ctx, models.Product{ID: "missing", RowID: uuid.New(), Version: 1}, &second)
	assert.ErrorIs(t, err, store.ErrStale)

	got, err := st.FindOne(ctx, store.Filter{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "product p1", got.Name)
	assert.Equal(t, first.RowID, got.RowID)
}

func testRemove(t *testing.T, st store.Store) {
	ctx := context.Background()
	bea, betty := uuid.New(), uuid.New()
	require.NoError(t, st.Insert(ctx, product("p1", bea, baseTime())))

	n, err := st.Remove(ctx, store.Filter{ID: "p1", Owner: betty})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = st.Remove(ctx, store.Filter{ID: "p1", Owner: bea})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = st.Remove(ctx, store.Filter{ID: "p1", Owner: bea})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
