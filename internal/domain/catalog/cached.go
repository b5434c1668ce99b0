package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/greenify/plant-store/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	plantKeyPrefix = "plant:"
	listGenKey     = "plants:gen"
	notFoundMarker = "notfound"
)

// CachedService is a read-through Redis cache in front of Service. Redis
// errors never fail a request; they only cost a trip to the store.
type CachedService struct {
	next   *Service
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedService(next *Service, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedService{next: next, redis: rdb, ttl: ttl, logger: logger}
}

func plantKey(id string) string {
	return plantKeyPrefix + id
}

func (c *CachedService) Get(ctx context.Context, id string) (*model.Plant, error) {
	key := plantKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, ErrPlantNotFound
		}
		var p model.Plant
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("failed to unmarshal cached plant", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis error, continuing with store", zap.Error(err))
	}

	p, err := c.next.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPlantNotFound) {
			c.set(ctx, key, []byte(notFoundMarker), time.Minute)
		}
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		c.set(ctx, key, data, c.ttl)
	}
	return p, nil
}

// List caches whole result sets under a generation number that every
// invalidation bumps, so stale lists are never served after a write.
func (c *CachedService) List(ctx context.Context, filter model.PlantFilter) ([]*model.Plant, error) {
	if filter.IncludeInactive || filter.Search != "" {
		return c.next.List(ctx, filter)
	}

	gen, err := c.redis.Get(ctx, listGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("redis error, continuing with store", zap.Error(err))
		return c.next.List(ctx, filter)
	}
	key := fmt.Sprintf("plants:list:%d:%s", gen, filter.Category)

	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var plants []*model.Plant
		if err := json.Unmarshal(data, &plants); err == nil {
			return plants, nil
		}
	}

	plants, err := c.next.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(plants); err == nil {
		c.set(ctx, key, data, c.ttl)
	}
	return plants, nil
}

func (c *CachedService) Create(ctx context.Context, in PlantInput) (*model.Plant, error) {
	p, err := c.next.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	c.Invalidate(ctx, p.ID)
	return p, nil
}

func (c *CachedService) Update(ctx context.Context, id string, in PlantInput) (*model.Plant, error) {
	p, err := c.next.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.Invalidate(ctx, id)
	return p, nil
}

func (c *CachedService) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx, id)
	return nil
}

// Invalidate drops the plants' entries and every cached listing
func (c *CachedService) Invalidate(ctx context.Context, plantIDs ...string) {
	keys := make([]string, 0, len(plantIDs))
	for _, id := range plantIDs {
		keys = append(keys, plantKey(id))
	}

	pipe := c.redis.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Incr(ctx, listGenKey)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("failed to invalidate plant cache", zap.Strings("plant_ids", plantIDs), zap.Error(err))
	}
}

func (c *CachedService) set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("failed to cache", zap.String("key", key), zap.Error(err))
	}
}

var (
	_ Catalog     = (*Service)(nil)
	_ Catalog     = (*CachedService)(nil)
	_ Invalidator = (*CachedService)(nil)
)
