package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

func newQueuedOrder(createdAt time.Time) domain.QueuedOrder {
	return domain.QueuedOrder{
		ID: uuid.New().String(),
		Items: []domain.CartLine{
			{ID: uuid.New().String(), ProductRef: "p-latte", Name: "Latte", UnitPrice: 450, Quantity: 1},
		},
		TotalMinor:    450,
		PaymentMethod: domain.MethodCash,
		CreatedAt:     createdAt,
	}
}

func TestMemoryStore_AppendAndUnsynced(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	first := newQueuedOrder(base)
	second := newQueuedOrder(base.Add(time.Minute))

	// Append newest first to prove Unsynced orders by creation time.
	assert.NilError(t, s.Append(ctx, second))
	assert.NilError(t, s.Append(ctx, first))

	unsynced, err := s.Unsynced(ctx)
	assert.NilError(t, err)
	assert.Equal(t, 2, len(unsynced))
	assert.Equal(t, first.ID, unsynced[0].ID)
	assert.Equal(t, second.ID, unsynced[1].ID)

	depth, err := s.Depth(ctx)
	assert.NilError(t, err)
	assert.Equal(t, 2, depth)
}

func TestMemoryStore_DuplicateAppend(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	order := newQueuedOrder(time.Now())
	assert.NilError(t, s.Append(ctx, order))
	assert.ErrorIs(t, s.Append(ctx, order), ErrDuplicateOrder)
}

func TestMemoryStore_MarkSynced(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	order := newQueuedOrder(time.Now())
	assert.NilError(t, s.Append(ctx, order))

	assert.NilError(t, s.MarkSynced(ctx, order.ID))

	unsynced, err := s.Unsynced(ctx)
	assert.NilError(t, err)
	assert.Equal(t, 0, len(unsynced))

	// Idempotent: a crash between submit and mark can repeat the mark.
	assert.NilError(t, s.MarkSynced(ctx, order.ID))

	assert.ErrorIs(t, s.MarkSynced(ctx, "missing"), ErrOrderNotFound)
}

func TestMemoryStore_UnsyncedCopyIsDetached(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	order := newQueuedOrder(time.Now())
	assert.NilError(t, s.Append(ctx, order))

	unsynced, err := s.Unsynced(ctx)
	assert.NilError(t, err)
	unsynced[0].Synced = true

	again, err := s.Unsynced(ctx)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(again))
	assert.Assert(t, !again[0].Synced)
}
