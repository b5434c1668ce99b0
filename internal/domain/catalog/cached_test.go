package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/greenify/plant-store/internal/infrastructure/store/mocks"
	"github.com/greenify/plant-store/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCachedService(t *testing.T) (*CachedService, *mocks.MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	memStore := mocks.NewMemoryStore()
	cached := NewCachedService(NewService(memStore, zap.NewNop()), rdb, time.Minute, zap.NewNop())
	return cached, memStore, mr
}

func TestCachedService_Get_ReadThrough(t *testing.T) {
	cached, memStore, mr := newTestCachedService(t)
	ctx := context.Background()
	memStore.SeedPlant(model.Plant{ID: "p1", Name: "Fern", Price: 300, Stock: 5, IsActive: true})

	p, err := cached.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Fern", p.Name)
	assert.True(t, mr.Exists("plant:p1"))

	// a write that bypasses the cache is not visible until invalidation
	require.NoError(t, memStore.Plants().DecrementStock(ctx, "p1", 2))
	p, err = cached.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	cached.Invalidate(ctx, "p1")
	p, err = cached.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestCachedService_Get_CachesNotFound(t *testing.T) {
	cached, _, mr := newTestCachedService(t)

	_, err := cached.Get(context.Background(), "ghost")

	assert.ErrorIs(t, err, ErrPlantNotFound)
	v, err := mr.Get("plant:ghost")
	require.NoError(t, err)
	assert.Equal(t, notFoundMarker, v)
}

func TestCachedService_List_InvalidatedByWrites(t *testing.T) {
	cached, _, _ := newTestCachedService(t)
	ctx := context.Background()

	_, err := cached.Create(ctx, validInput())
	require.NoError(t, err)

	plants, err := cached.List(ctx, model.PlantFilter{})
	require.NoError(t, err)
	require.Len(t, plants, 1)

	_, err = cached.Create(ctx, validInput())
	require.NoError(t, err)

	plants, err = cached.List(ctx, model.PlantFilter{})
	require.NoError(t, err)
	assert.Len(t, plants, 2)
}

func TestCachedService_Delete_DropsEntry(t *testing.T) {
	cached, memStore, mr := newTestCachedService(t)
	ctx := context.Background()
	memStore.SeedPlant(model.Plant{ID: "p1", Name: "Fern", Price: 300, IsActive: true})

	_, err := cached.Get(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, cached.Delete(ctx, "p1"))

	assert.False(t, mr.Exists("plant:p1"))
	_, err = cached.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrPlantNotFound)
}

func TestCachedService_RedisDown_FallsBackToStore(t *testing.T) {
	cached, memStore, mr := newTestCachedService(t)
	ctx := context.Background()
	memStore.SeedPlant(model.Plant{ID: "p1", Name: "Fern", Price: 300, IsActive: true})
	mr.Close()

	p, err := cached.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Fern", p.Name)

	plants, err := cached.List(ctx, model.PlantFilter{})
	require.NoError(t, err)
	assert.Len(t, plants, 1)
}
