package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	menuKey    = "pos:menu"
	menuAgeKey = "pos:menu:cached_at"
)

// RedisCache stores the menu snapshot in the terminal's local redis.
// No TTL: a stale menu beats no menu when the network is down.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Put(ctx context.Context, items []domain.MenuItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal menu failed: %w", err)
	}

	if err := r.client.Set(ctx, menuKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if err := r.client.Set(ctx, menuAgeKey, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context) ([]domain.MenuItem, error) {
	data, err := r.client.Get(ctx, menuKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []domain.MenuItem
	if err2 := json.Unmarshal(data, &items); err2 != nil {
		return nil, fmt.Errorf("unmarshal menu failed: %w", err2)
	}
	return items, nil
}

func (r *RedisCache) CachedAt(ctx context.Context) (time.Time, error) {
	raw, err := r.client.Get(ctx, menuAgeKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis get failed: %w", err)
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cached_at failed: %w", err)
	}
	return at, nil
}
