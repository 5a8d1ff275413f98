package ticket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/BrewHubPHL/pos-terminal/internal/api"
	"github.com/BrewHubPHL/pos-terminal/internal/offline"
	"github.com/BrewHubPHL/pos-terminal/internal/payment"
	"github.com/BrewHubPHL/pos-terminal/internal/store"
	"github.com/BrewHubPHL/pos-terminal/internal/voucher"
)

type mockOrderClient struct {
	mu          sync.Mutex
	delay       time.Duration
	createErr   error
	cashErr     error
	createCalls int
	cashCalls   int
	markedPaid  []string
	voided      []string
}

func (m *mockOrderClient) CreateOrder(_ context.Context, _ api.CreateOrderRequest) (string, error) {
	m.mu.Lock()
	m.createCalls++
	delay := m.delay
	err := m.createErr
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	return "order-" + uuid.NewString(), nil
}

func (m *mockOrderClient) CashCheckout(_ context.Context, _ []api.OrderItem, _ domain.PaymentMethod, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cashCalls++
	if m.cashErr != nil {
		return "", m.cashErr
	}
	return "order-" + uuid.NewString(), nil
}

func (m *mockOrderClient) MarkPaidCash(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedPaid = append(m.markedPaid, orderID)
	return nil
}

func (m *mockOrderClient) VoidOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voided = append(m.voided, orderID)
	return nil
}

func (m *mockOrderClient) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

type mockInitiator struct {
	mu       sync.Mutex
	conflict bool
	err      error
	calls    int
}

func (m *mockInitiator) Initiate(_ context.Context, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.conflict, m.err
}

// mockReconciler delivers the configured outcome immediately, stamped with
// the orderID and mode it was started with.
type mockReconciler struct {
	mu       sync.Mutex
	outcome  *payment.Outcome
	lastMode domain.PollMode
	started  int
	stops    int
	stopFunc func()
}

func (m *mockReconciler) Start(_ context.Context, orderID string, mode domain.PollMode) <-chan payment.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	m.lastMode = mode
	ch := make(chan payment.Outcome, 1)
	if m.outcome != nil {
		o := *m.outcome
		o.OrderID = orderID
		o.Mode = mode
		ch <- o
	}
	close(ch)
	return ch
}

func (m *mockReconciler) Stop() {
	m.mu.Lock()
	m.stops++
	fn := m.stopFunc
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *mockReconciler) setStopFunc(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopFunc = fn
}

func (m *mockReconciler) mode() domain.PollMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMode
}

type fakeGuard struct {
	mu       sync.Mutex
	capMinor int64
	total    int64
	releases int
	session  domain.OfflineSession
}

func newFakeGuard(capMinor int64) *fakeGuard {
	return &fakeGuard{
		capMinor: capMinor,
		session:  domain.OfflineSession{ID: "sess-1", CapMinorUnits: capMinor, LocalOnly: true},
	}
}

func (f *fakeGuard) EnsureSession(_ context.Context) *domain.OfflineSession {
	s := f.session
	return &s
}

func (f *fakeGuard) RecordSale(_ context.Context, amountMinor int64, _ string) (*offline.SaleDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.total+amountMinor > f.capMinor {
		return &offline.SaleDecision{Blocked: true, TotalMinor: f.total, CapMinor: f.capMinor}, offline.ErrCapBlocked
	}
	f.total += amountMinor
	return &offline.SaleDecision{Allowed: true, TotalMinor: f.total, CapMinor: f.capMinor}, nil
}

func (f *fakeGuard) ReleaseSale(amountMinor int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total -= amountMinor
	if f.total < 0 {
		f.total = 0
	}
	f.releases++
}

func (f *fakeGuard) currentTotal() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *fakeGuard) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// failingQueue refuses appends; everything else delegates.
type failingQueue struct {
	store.QueueStore
	appendErr error
}

func (q *failingQueue) Append(_ context.Context, _ domain.QueuedOrder) error {
	return q.appendErr
}

type fixedConnectivity bool

func (f fixedConnectivity) Online() bool { return bool(f) }

type fakeRedeemer struct {
	result *voucher.Result
	err    error
	orders []string
}

func (f *fakeRedeemer) Redeem(_ context.Context, _, orderID string) (*voucher.Result, error) {
	f.orders = append(f.orders, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
