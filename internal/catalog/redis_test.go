package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *RedisCache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client)
}

func testMenu() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: "p-latte", Name: "Latte", PriceMinorUnits: 450},
		{ID: "p-drip", Name: "Drip Coffee", PriceMinorUnits: 250},
		{ID: "p-ship", Name: "Shipping", OpenPrice: true},
	}
}

func TestRedisCache_PutGet(t *testing.T) {
	cache := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, testMenu()))

	items, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int64(450), items[0].PriceMinorUnits)
	assert.True(t, items[2].OpenPrice)

	at, err := cache.CachedAt(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), at, time.Minute)
}

func TestRedisCache_Miss(t *testing.T) {
	cache := setupTestRedis(t)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = cache.CachedAt(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

type staticMenuClient struct {
	items []domain.MenuItem
	err   error
}

func (c *staticMenuClient) Menu(_ context.Context) ([]domain.MenuItem, error) {
	return c.items, c.err
}

func TestService_RefreshAndLookup(t *testing.T) {
	cache := setupTestRedis(t)
	svc := NewService(&staticMenuClient{items: testMenu()}, cache)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx))

	item, err := svc.Lookup(ctx, "p-drip")
	require.NoError(t, err)
	assert.Equal(t, "Drip Coffee", item.Name)

	_, err = svc.Lookup(ctx, "p-missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestService_FailedRefreshKeepsSnapshot(t *testing.T) {
	cache := setupTestRedis(t)
	client := &staticMenuClient{items: testMenu()}
	svc := NewService(client, cache)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx))

	client.err = errors.New("network down")
	require.Error(t, svc.Refresh(ctx))

	items, err := svc.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3, "stale snapshot must survive a failed refresh")
}
