package payment

import (
	"context"
	"time"

	"github.com/BrewHubPHL/pos-terminal/internal/api"
	"github.com/rs/zerolog/log"
)

type InitiationClient interface {
	InitiatePayment(ctx context.Context, orderID string) (string, error)
}

// Initiator pushes an order to the card terminal. Transport failures are
// retried on a fixed backoff schedule; semantic failures are not. A conflict
// response means an earlier attempt may already have succeeded server-side,
// so the caller must verify via the status check instead of assuming either way.
type Initiator struct {
	api     InitiationClient
	backoff []time.Duration
}

func NewInitiator(client InitiationClient) *Initiator {
	return &Initiator{
		api:     client,
		backoff: []time.Duration{2 * time.Second, 4 * time.Second},
	}
}

// NewInitiatorWithBackoff overrides the retry schedule (tests).
func NewInitiatorWithBackoff(client InitiationClient, backoff []time.Duration) *Initiator {
	return &Initiator{api: client, backoff: backoff}
}

// Initiate returns conflict=true when the backend answered 409.
func (i *Initiator) Initiate(ctx context.Context, orderID string) (conflict bool, err error) {
	for attempt := 0; ; attempt++ {
		_, err = i.api.InitiatePayment(ctx, orderID)
		if err == nil {
			return false, nil
		}
		if api.IsConflict(err) {
			log.Warn().Str("order_id", orderID).Msg("payment initiation conflict, verification required")
			return true, nil
		}
		if !api.IsTransient(err) || attempt >= len(i.backoff) {
			return false, err
		}

		log.Warn().
			Str("order_id", orderID).
			Int("attempt", attempt+1).
			Dur("backoff", i.backoff[attempt]).
			Err(err).
			Msg("payment initiation failed, retrying")

		select {
		case <-time.After(i.backoff[attempt]):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
