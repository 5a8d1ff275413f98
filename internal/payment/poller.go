package payment

import (
	"context"
	"sync"
	"time"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/rs/zerolog/log"
)

type StatusClient interface {
	PaymentStatus(ctx context.Context, orderID string) (domain.PaymentStatus, string, error)
}

// Outcome is the single result of one reconciliation poll session.
type Outcome struct {
	OrderID  string
	Mode     domain.PollMode
	Paid     bool
	Status   domain.PaymentStatus
	Message  string
	TimedOut bool
}

const (
	// MsgVerificationPending is shown when the deadline passes with no
	// definitive signal. Silence is never success.
	MsgVerificationPending = "Payment verification pending — check the terminal or the manager view"
	// MsgPostConflictPaid distinguishes a payment confirmed after a
	// duplicate-initiation conflict from a plain success.
	MsgPostConflictPaid = "Payment verified after duplicate initiation — order is paid"
)

// Reconciler actively polls the payment status check instead of trusting push
// notifications, which arrive minutes late during degraded-performance events.
// At most one poll session runs per ticket; starting a new one supersedes and
// cancels the previous session.
type Reconciler struct {
	api      StatusClient
	interval time.Duration
	deadline time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewReconciler(client StatusClient) *Reconciler {
	return &Reconciler{
		api:      client,
		interval: 3 * time.Second,
		deadline: 45 * time.Second,
	}
}

// NewReconcilerWithTimings compresses the schedule for tests.
func NewReconcilerWithTimings(client StatusClient, interval, deadline time.Duration) *Reconciler {
	return &Reconciler{api: client, interval: interval, deadline: deadline}
}

// Start begins a poll session and returns a channel that delivers exactly one
// Outcome, then closes. A superseded session is cancelled and delivers nothing.
func (r *Reconciler) Start(ctx context.Context, orderID string, mode domain.PollMode) <-chan Outcome {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	out := make(chan Outcome, 1)
	go r.run(pollCtx, orderID, mode, out)
	return out
}

// Stop cancels the active poll session, if any.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Reconciler) run(ctx context.Context, orderID string, mode domain.PollMode, out chan<- Outcome) {
	defer close(out)

	ticker := time.NewTicker(r.interval)
	deadline := time.NewTimer(r.deadline)
	defer ticker.Stop()
	defer deadline.Stop()

	log.Info().
		Str("order_id", orderID).
		Str("mode", string(mode)).
		Msg("reconciliation poll started")

	// First check fires immediately: in post-conflict mode the payment may
	// already be confirmed and the customer is waiting at the counter.
	if done := r.check(ctx, orderID, mode, out); done {
		return
	}

	for {
		select {
		case <-ticker.C:
			if done := r.check(ctx, orderID, mode, out); done {
				return
			}
		case <-deadline.C:
			log.Warn().Str("order_id", orderID).Msg("reconciliation poll deadline reached")
			out <- Outcome{
				OrderID:  orderID,
				Mode:     mode,
				Paid:     false,
				TimedOut: true,
				Message:  MsgVerificationPending,
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// check performs one status call. Returns true when a definitive outcome was
// delivered. Transient failures keep the session alive: a failed read proves
// nothing about the payment.
func (r *Reconciler) check(ctx context.Context, orderID string, mode domain.PollMode, out chan<- Outcome) bool {
	callCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	status, message, err := r.api.PaymentStatus(callCtx, orderID)
	if err != nil {
		if ctx.Err() != nil {
			return true // superseded or shut down; deliver nothing
		}
		log.Warn().Str("order_id", orderID).Err(err).Msg("status check failed, continuing to poll")
		return false
	}

	if !status.IsDefinitive() {
		return false
	}

	outcome := Outcome{
		OrderID: orderID,
		Mode:    mode,
		Paid:    status.IsPaid(),
		Status:  status,
		Message: message,
	}
	if outcome.Paid && mode == domain.PollModePostConflict {
		outcome.Message = MsgPostConflictPaid
	}
	out <- outcome
	return true
}
