package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

// Cache persists the last-known menu so the terminal can price and compose
// orders while partitioned from the catalog server.
type Cache interface {
	Put(ctx context.Context, items []domain.MenuItem) error
	Get(ctx context.Context) ([]domain.MenuItem, error)
	CachedAt(ctx context.Context) (time.Time, error)
}

var ErrCacheMiss = errors.New("menu cache miss")
