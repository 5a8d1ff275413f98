package ticket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/BrewHubPHL/pos-terminal/internal/api"
	"github.com/BrewHubPHL/pos-terminal/internal/cart"
	"github.com/BrewHubPHL/pos-terminal/internal/offline"
	"github.com/BrewHubPHL/pos-terminal/internal/payment"
	"github.com/BrewHubPHL/pos-terminal/internal/store"
	"github.com/BrewHubPHL/pos-terminal/internal/voucher"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrSubmitInFlight     = errors.New("a submit is already in flight")
	ErrWrongPhase         = errors.New("operation not allowed in current phase")
	ErrCompReasonRequired = errors.New("comp requires a reason")
	ErrOfflineMethod      = errors.New("only cash is accepted while offline")
)

type OrderClient interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (string, error)
	CashCheckout(ctx context.Context, items []api.OrderItem, method domain.PaymentMethod, compReason string) (string, error)
	MarkPaidCash(ctx context.Context, orderID string) error
	VoidOrder(ctx context.Context, orderID string) error
}

type PaymentInitiator interface {
	Initiate(ctx context.Context, orderID string) (conflict bool, err error)
}

type PaymentReconciler interface {
	Start(ctx context.Context, orderID string, mode domain.PollMode) <-chan payment.Outcome
	Stop()
}

type ExposureGuard interface {
	EnsureSession(ctx context.Context) *domain.OfflineSession
	RecordSale(ctx context.Context, amountMinor int64, orderID string) (*offline.SaleDecision, error)
	ReleaseSale(amountMinor int64)
}

type VoucherRedeemer interface {
	Redeem(ctx context.Context, code, orderID string) (*voucher.Result, error)
}

type Connectivity interface {
	Online() bool
}

// Config collects the machine's collaborators. Guard, Queue, Monitor and
// Vouchers may be nil for a terminal running without offline support.
type Config struct {
	Cart       *cart.Builder
	Orders     OrderClient
	Initiator  PaymentInitiator
	Reconciler PaymentReconciler
	Guard      ExposureGuard
	Queue      store.QueueStore
	Monitor    Connectivity
	Vouchers   VoucherRedeemer

	// DisplayDelay is how long a paid ticket stays on screen before the
	// register resets for the next customer. When set it applies to every
	// payment path; otherwise card payments linger a little longer than
	// cash so the customer sees the terminal confirmation.
	DisplayDelay time.Duration
}

// Machine drives one ticket through Building, Confirm, Paying and its
// terminal phases. One ticket is active at a time; a paid ticket resets to
// a fresh Building ticket after a short display delay.
type Machine struct {
	cart       *cart.Builder
	orders     OrderClient
	initiator  PaymentInitiator
	reconciler PaymentReconciler
	guard      ExposureGuard
	queue      store.QueueStore
	monitor    Connectivity
	vouchers   VoucherRedeemer

	cardDisplayDelay time.Duration
	cashDisplayDelay time.Duration
	submitSem        *semaphore.Weighted

	mu         sync.Mutex
	ticket     domain.Ticket
	resetTimer *time.Timer
}

func NewMachine(cfg Config) *Machine {
	cardDelay := 5 * time.Second
	cashDelay := 3 * time.Second
	if cfg.DisplayDelay != 0 {
		cardDelay = cfg.DisplayDelay
		cashDelay = cfg.DisplayDelay
	}
	return &Machine{
		cart:             cfg.Cart,
		orders:           cfg.Orders,
		initiator:        cfg.Initiator,
		reconciler:       cfg.Reconciler,
		guard:            cfg.Guard,
		queue:            cfg.Queue,
		monitor:          cfg.Monitor,
		vouchers:         cfg.Vouchers,
		cardDisplayDelay: cardDelay,
		cashDisplayDelay: cashDelay,
		submitSem:        semaphore.NewWeighted(1),
		ticket:           newTicket(),
	}
}

func newTicket() domain.Ticket {
	return domain.Ticket{
		ID:        uuid.NewString(),
		Phase:     domain.PhaseBuilding,
		UpdatedAt: time.Now().UTC(),
	}
}

func (m *Machine) Cart() *cart.Builder { return m.cart }

func (m *Machine) Phase() domain.TicketPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticket.Phase
}

// Snapshot returns a copy of the ticket with the live cart lines attached.
func (m *Machine) Snapshot() domain.Ticket {
	m.mu.Lock()
	t := m.ticket
	m.mu.Unlock()
	t.Lines = m.cart.Snapshot()
	return t
}

// transitionLocked moves the ticket to a new phase, refusing illegal jumps.
// Callers hold m.mu.
func (m *Machine) transitionLocked(to domain.TicketPhase, message string) bool {
	if !domain.CanTransitionTo(m.ticket.Phase, to) {
		log.Warn().
			Str("from", m.ticket.Phase.String()).
			Str("to", to.String()).
			Msg("illegal phase transition refused")
		return false
	}
	log.Info().
		Str("ticket_id", m.ticket.ID).
		Str("from", m.ticket.Phase.String()).
		Str("to", to.String()).
		Msg("ticket phase change")
	m.ticket.Phase = to
	m.ticket.StatusMessage = message
	if to != domain.PhaseError {
		m.ticket.LastError = ""
	}
	m.ticket.UpdatedAt = time.Now().UTC()
	return true
}

func (m *Machine) failLocked(reason string) {
	m.transitionLocked(domain.PhaseError, "")
	m.ticket.LastError = reason
}

// Submit closes the cart and creates the order. Cash and comp settle in one
// atomic backend call; terminal payments create the order first and collect
// payment as a separate step. Double taps are absorbed: while one submit is
// in flight every other submit is refused without touching the backend.
func (m *Machine) Submit(ctx context.Context, method domain.PaymentMethod, compReason string) error {
	if !m.submitSem.TryAcquire(1) {
		return ErrSubmitInFlight
	}
	defer m.submitSem.Release(1)

	m.mu.Lock()
	if m.ticket.Phase != domain.PhaseBuilding {
		m.mu.Unlock()
		return ErrWrongPhase
	}
	m.mu.Unlock()

	if m.cart.Empty() {
		return ErrEmptyCart
	}
	if method == domain.MethodComp && compReason == "" {
		return ErrCompReasonRequired
	}

	if m.monitor != nil && !m.monitor.Online() {
		return m.submitOffline(ctx, method)
	}
	return m.submitOnline(ctx, method, compReason)
}

func (m *Machine) submitOnline(ctx context.Context, method domain.PaymentMethod, compReason string) error {
	lines := m.cart.Snapshot()
	items := make([]api.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, api.LineToOrderItem(l))
	}

	if method == domain.MethodTerminal {
		orderID, err := m.orders.CreateOrder(ctx, api.CreateOrderRequest{Items: items})
		if err != nil {
			m.mu.Lock()
			m.failLocked("order could not be created: " + err.Error())
			m.mu.Unlock()
			return err
		}
		m.mu.Lock()
		m.ticket.CreatedOrderID = orderID
		m.transitionLocked(domain.PhaseConfirm, "Order created, awaiting payment")
		m.mu.Unlock()
		return nil
	}

	orderID, err := m.orders.CashCheckout(ctx, items, method, compReason)
	if err != nil {
		m.mu.Lock()
		m.failLocked("checkout failed: " + err.Error())
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.ticket.CreatedOrderID = orderID
	m.transitionLocked(domain.PhasePaid, "Payment complete")
	m.mu.Unlock()
	m.scheduleReset(m.cashDisplayDelay)
	return nil
}

// submitOffline records the sale against the exposure cap, then appends it
// to the durable queue. The cap check comes first: an order that would
// breach the cap is never queued.
func (m *Machine) submitOffline(ctx context.Context, method domain.PaymentMethod) error {
	if method != domain.MethodCash {
		return ErrOfflineMethod
	}

	session := m.guard.EnsureSession(ctx)
	total := m.cart.Total()
	orderID := uuid.NewString()

	if _, err := m.guard.RecordSale(ctx, total, orderID); err != nil {
		return err
	}

	order := domain.QueuedOrder{
		ID:             orderID,
		Items:          m.cart.Snapshot(),
		TotalMinor:     total,
		PaymentMethod:  domain.MethodCash,
		CreatedAt:      time.Now().UTC(),
		OfflineSession: session.ID,
	}
	if err := m.queue.Append(ctx, order); err != nil {
		// The sale never happened: back it out of the cap ledger so the
		// exposure total matches what is actually queued.
		m.guard.ReleaseSale(total)
		return err
	}
	log.Info().Str("order_id", orderID).Int64("total", total).Msg("offline order queued")

	m.mu.Lock()
	m.ticket.CreatedOrderID = orderID
	m.transitionLocked(domain.PhasePaid, "Cash received, order queued for sync")
	m.mu.Unlock()
	m.scheduleReset(m.cashDisplayDelay)
	return nil
}

// PayOnTerminal initiates the card payment and hands the ticket to the
// reconciliation poller. A duplicate-initiation conflict is not a failure:
// the poller runs in post-conflict mode to find out what really happened.
// ctx must outlive the poll session.
func (m *Machine) PayOnTerminal(ctx context.Context) error {
	m.mu.Lock()
	if m.ticket.Phase != domain.PhaseConfirm {
		m.mu.Unlock()
		return ErrWrongPhase
	}
	orderID := m.ticket.CreatedOrderID
	m.transitionLocked(domain.PhasePaying, "Sending payment to terminal")
	m.mu.Unlock()

	conflict, err := m.initiator.Initiate(ctx, orderID)
	if err != nil {
		m.mu.Lock()
		m.failLocked("payment could not be started: " + err.Error())
		m.mu.Unlock()
		return err
	}

	mode := domain.PollModeNormal
	if conflict {
		mode = domain.PollModePostConflict
	}
	outcomes := m.reconciler.Start(ctx, orderID, mode)
	go func() {
		for outcome := range outcomes {
			m.applyOutcome(outcome)
		}
	}()
	return nil
}

func (m *Machine) applyOutcome(outcome payment.Outcome) {
	m.mu.Lock()
	if outcome.OrderID != m.ticket.CreatedOrderID || m.ticket.Phase != domain.PhasePaying {
		m.mu.Unlock()
		return
	}
	if outcome.Paid {
		m.transitionLocked(domain.PhasePaid, outcome.Message)
		m.mu.Unlock()
		m.scheduleReset(m.cardDisplayDelay)
		return
	}
	m.failLocked(outcome.Message)
	m.mu.Unlock()
}

// SwitchToCash abandons terminal payment and records a cash payment for the
// already-created order. Available from Confirm, and from Paying when the
// card reader is misbehaving.
func (m *Machine) SwitchToCash(ctx context.Context) error {
	m.mu.Lock()
	phase := m.ticket.Phase
	m.mu.Unlock()
	if phase != domain.PhaseConfirm && phase != domain.PhasePaying {
		return ErrWrongPhase
	}

	m.reconciler.Stop()

	// A poll outcome may have landed while the session was stopping; never
	// record cash against an order the terminal already settled.
	m.mu.Lock()
	if m.ticket.Phase != domain.PhaseConfirm && m.ticket.Phase != domain.PhasePaying {
		m.mu.Unlock()
		return ErrWrongPhase
	}
	orderID := m.ticket.CreatedOrderID
	m.mu.Unlock()

	if err := m.orders.MarkPaidCash(ctx, orderID); err != nil {
		m.mu.Lock()
		m.failLocked("cash fallback failed: " + err.Error())
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.transitionLocked(domain.PhasePaid, "Cash payment recorded")
	m.mu.Unlock()
	m.scheduleReset(m.cashDisplayDelay)
	return nil
}

// ApplyVoucher burns a voucher against the created order before payment.
func (m *Machine) ApplyVoucher(ctx context.Context, code string) (*voucher.Result, error) {
	m.mu.Lock()
	phase := m.ticket.Phase
	orderID := m.ticket.CreatedOrderID
	m.mu.Unlock()
	if phase != domain.PhaseConfirm {
		return nil, ErrWrongPhase
	}

	res, err := m.vouchers.Redeem(ctx, code, orderID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.ticket.StatusMessage = res.Message
	m.mu.Unlock()
	return res, nil
}

// Cancel abandons the current ticket. Any order already created is voided
// best effort, then the register resets to an empty Building ticket.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	phase := m.ticket.Phase
	orderID := m.ticket.CreatedOrderID
	m.mu.Unlock()
	if phase != domain.PhaseBuilding && phase != domain.PhaseConfirm {
		return ErrWrongPhase
	}

	m.reconciler.Stop()
	if orderID != "" {
		if err := m.orders.VoidOrder(ctx, orderID); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("void failed, order may need manual cleanup")
		}
	}

	m.mu.Lock()
	m.cart.Clear()
	m.ticket = newTicket()
	m.ticket.StatusMessage = "Order cancelled"
	m.mu.Unlock()
	return nil
}

// Retry returns an errored ticket to Building with the cart untouched.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticket.Phase != domain.PhaseError {
		return ErrWrongPhase
	}
	m.ticket.CreatedOrderID = ""
	m.transitionLocked(domain.PhaseBuilding, "")
	return nil
}

// scheduleReset clears the register after the paid ticket has been shown
// long enough for the customer to see it.
func (m *Machine) scheduleReset(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetTimer != nil {
		m.resetTimer.Stop()
	}
	m.resetTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.ticket.Phase != domain.PhasePaid {
			return
		}
		m.cart.Clear()
		m.ticket = newTicket()
	})
}
