package store

import (
	"context"
	"errors"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

// Common errors returned by queue stores
var (
	ErrOrderNotFound  = errors.New("queued order not found")
	ErrDuplicateOrder = errors.New("queued order id already exists")
)

// QueueStore is the durable local queue of orders created while offline.
// Entries are immutable once appended; MarkSynced flips synced false -> true
// and is idempotent, so a replay crash between submit and mark is safe to
// repeat (the server dedupes by the client-generated id).
type QueueStore interface {
	// Append adds a new unsynced order.
	Append(ctx context.Context, order domain.QueuedOrder) error

	// Unsynced returns unsynced orders in creation order.
	Unsynced(ctx context.Context) ([]domain.QueuedOrder, error)

	// MarkSynced flips the synced flag for one order.
	MarkSynced(ctx context.Context, id string) error

	// Depth counts unsynced orders.
	Depth(ctx context.Context) (int, error)

	// Close shuts down the store.
	Close() error
}
