package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/BrewHubPHL/pos-terminal/internal/store"
)

var ErrSyncInProgress = errors.New("sync already in progress")

type ReplayClient interface {
	ReplayOrder(ctx context.Context, order domain.QueuedOrder) (string, error)
}

// OrderForwarder publishes a synced order downstream (kitchen display).
type OrderForwarder interface {
	ForwardSynced(ctx context.Context, order domain.QueuedOrder, serverOrderID string) error
}

// SyncReport summarizes one replay pass.
type SyncReport struct {
	Attempted int
	Synced    int
	Remaining int
}

// Syncer replays the durable offline queue against the backend once
// connectivity returns. Replay is strictly sequential in capture order and
// stops at the first failure, leaving the remainder queued for the next
// pass. The backend dedupes on client order id, so re-sending an order
// whose ack was lost is harmless.
type Syncer struct {
	api       ReplayClient
	queue     store.QueueStore
	forwarder OrderForwarder
	interval  time.Duration

	sem    *semaphore.Weighted
	mu     sync.Mutex
	paused bool
}

func NewSyncer(api ReplayClient, queue store.QueueStore, forwarder OrderForwarder) *Syncer {
	return &Syncer{
		api:       api,
		queue:     queue,
		forwarder: forwarder,
		interval:  30 * time.Second,
		sem:       semaphore.NewWeighted(1),
	}
}

// Pause suspends replay, for a cashier reviewing the queue mid recovery.
func (s *Syncer) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	log.Info().Msg("offline queue sync paused")
}

// Resume lifts a pause and immediately kicks a replay pass, so a queue that
// built up during review starts draining right away.
func (s *Syncer) Resume(ctx context.Context) {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	log.Info().Msg("offline queue sync resumed")
	go func() {
		if _, err := s.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
			log.Debug().Err(err).Msg("post-resume sync pass incomplete")
		}
	}()
}

func (s *Syncer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SyncNow runs one replay pass. Only one pass runs at a time; concurrent
// callers get ErrSyncInProgress instead of queueing up behind each other.
func (s *Syncer) SyncNow(ctx context.Context) (*SyncReport, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrSyncInProgress
	}
	defer s.sem.Release(1)

	if s.Paused() {
		return &SyncReport{}, nil
	}

	pending, err := s.queue.Unsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unsynced orders: %w", err)
	}
	report := &SyncReport{Attempted: len(pending), Remaining: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}
	log.Info().Int("pending", len(pending)).Msg("replaying offline queue")

	for _, order := range pending {
		serverID, err := s.api.ReplayOrder(ctx, order)
		if err != nil {
			log.Warn().Err(err).Str("order_id", order.ID).
				Int("remaining", report.Remaining).
				Msg("offline replay halted")
			return report, fmt.Errorf("replay order %s: %w", order.ID, err)
		}
		if err := s.queue.MarkSynced(ctx, order.ID); err != nil {
			return report, fmt.Errorf("mark order %s synced: %w", order.ID, err)
		}
		report.Synced++
		report.Remaining--

		if s.forwarder != nil {
			// Kitchen forwarding is best effort, the order is already synced.
			if err := s.forwarder.ForwardSynced(ctx, order, serverID); err != nil {
				log.Warn().Err(err).Str("order_id", order.ID).Msg("kitchen forward failed")
			}
		}
	}
	log.Info().Int("synced", report.Synced).Msg("offline queue drained")
	return report, nil
}

// Run retries the queue on a timer so a pass halted mid batch eventually
// resumes without waiting for the next connectivity transition.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Debug().Err(err).Msg("periodic sync pass incomplete")
			}
		case <-ctx.Done():
			return
		}
	}
}
