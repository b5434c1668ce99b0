package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarts_DeleteMissing(t *testing.T) {
	s := NewStore()

	err := s.Carts().Delete(context.Background(), "user-1")

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCarts_GetForUpdate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	c, err := s.Carts().GetForUpdate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.UserID)
	assert.Empty(t, c.Items)

	_, err = s.Carts().Get(ctx, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "an empty cart is not stored")

	require.NoError(t, s.Carts().Save(ctx, &model.Cart{UserID: "user-1", Items: []model.CartItem{{PlantID: "p1", Quantity: 2}}}))
	c, err = s.Carts().GetForUpdate(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := &model.Plant{ID: "p1", Name: "Fern", Price: 100, Stock: 3, IsActive: true}
	require.NoError(t, s.Plants().Create(ctx, p))

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Repositories) error {
		require.NoError(t, tx.Plants().DecrementStock(ctx, "p1", 2))
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	got, err := s.Plants().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestPlants_DecrementStock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Plants().Create(ctx, &model.Plant{ID: "p1", Name: "Fern", Price: 100, Stock: 2, IsActive: true}))
	require.NoError(t, s.Plants().Create(ctx, &model.Plant{ID: "p2", Name: "Ivy", Price: 100, Stock: 5, IsActive: false}))

	assert.ErrorIs(t, s.Plants().DecrementStock(ctx, "p1", 3), store.ErrInsufficientStock)
	assert.ErrorIs(t, s.Plants().DecrementStock(ctx, "p2", 1), store.ErrInsufficientStock)
	assert.ErrorIs(t, s.Plants().DecrementStock(ctx, "missing", 1), store.ErrInsufficientStock)
	require.NoError(t, s.Plants().DecrementStock(ctx, "p1", 2))

	got, err := s.Plants().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, "GRN-000001", got.Code)
}
