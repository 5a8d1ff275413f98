package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

// MemoryCache is the in-process fallback when no redis is configured.
type MemoryCache struct {
	mu       sync.RWMutex
	items    []domain.MenuItem
	cachedAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Put(_ context.Context, items []domain.MenuItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]domain.MenuItem(nil), items...)
	c.cachedAt = time.Now().UTC()
	return nil
}

func (c *MemoryCache) Get(_ context.Context) ([]domain.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.items == nil {
		return nil, ErrCacheMiss
	}
	return append([]domain.MenuItem(nil), c.items...), nil
}

func (c *MemoryCache) CachedAt(_ context.Context) (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedAt.IsZero() {
		return time.Time{}, ErrCacheMiss
	}
	return c.cachedAt, nil
}
