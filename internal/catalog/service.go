package catalog

import (
	"context"
	"errors"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/rs/zerolog/log"
)

var ErrItemNotFound = errors.New("menu item not found")

type MenuClient interface {
	Menu(ctx context.Context) ([]domain.MenuItem, error)
}

// Service keeps the local menu cache warm and answers price lookups.
// The server catalog stays authoritative: the cache is consulted only when
// composing offline orders, and the server re-prices everything on replay.
type Service struct {
	api   MenuClient
	cache Cache
}

func NewService(api MenuClient, cache Cache) *Service {
	return &Service{api: api, cache: cache}
}

// Refresh pulls the live menu into the cache. Called on startup and on every
// reconnection; a failed refresh leaves the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context) error {
	items, err := s.api.Menu(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Put(ctx, items); err != nil {
		return err
	}
	log.Debug().Int("items", len(items)).Msg("menu cache refreshed")
	return nil
}

// Lookup resolves a catalog entry from the cached snapshot.
func (s *Service) Lookup(ctx context.Context, productRef string) (*domain.MenuItem, error) {
	items, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == productRef {
			return &items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

func (s *Service) Items(ctx context.Context) ([]domain.MenuItem, error) {
	return s.cache.Get(ctx)
}
