package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "event:"
	// Events change rarely; a short TTL keeps the cache honest without an
	// invalidation protocol beyond write-through deletes.
	eventCacheTTL = 60 * time.Second
)

// RedisEventCache caches event lookups in front of Postgres. QR regeneration
// and attendance validation both hit the same event repeatedly while a code
// is on screen.
type RedisEventCache struct {
	client *redis.Client
}

func NewRedisEventCache(client *redis.Client) *RedisEventCache {
	return &RedisEventCache{client: client}
}

// GetEvent returns the cached event, or (nil, nil) on a miss.
func (r *RedisEventCache) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	data, err := r.client.Get(ctx, eventKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached event: %w", err)
	}

	var event models.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached event: %w", err)
	}
	return &event, nil
}

func (r *RedisEventCache) SetEvent(ctx context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Set(ctx, eventKey(event.ID), data, eventCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache event: %w", err)
	}
	return nil
}

func (r *RedisEventCache) Invalidate(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, eventKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached event: %w", err)
	}
	return nil
}

// Helper: build Redis key for an event
func eventKey(id string) string {
	return eventKeyPrefix + id
}
