package store

import (
	"context"
	"sort"
	"sync"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

// MemoryStore implements QueueStore with in-memory storage. It backs tests
// and terminals running without a local database; orders queued here do not
// survive a process restart.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.QueuedOrder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*domain.QueuedOrder)}
}

func (s *MemoryStore) Append(_ context.Context, order domain.QueuedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}
	stored := order
	s.orders[order.ID] = &stored
	return nil
}

func (s *MemoryStore) Unsynced(_ context.Context) ([]domain.QueuedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.QueuedOrder, 0, len(s.orders))
	for _, o := range s.orders {
		if !o.Synced {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return ErrOrderNotFound
	}
	order.Synced = true
	return nil
}

func (s *MemoryStore) Depth(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	for _, o := range s.orders {
		if !o.Synced {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
