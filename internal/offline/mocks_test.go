package offline

import (
	"context"
	"errors"
	"sync"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/BrewHubPHL/pos-terminal/internal/api"
)

var errDown = &api.TransientError{Op: "POST /offline-session", Err: errors.New("connection refused")}

type fakeHealthClient struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeHealthClient) Health(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeHealthClient) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeHealthClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSessionClient simulates the backend offline-session ledger. Setting
// down makes every call fail with a transport error.
type fakeSessionClient struct {
	mu        sync.Mutex
	down      bool
	capMinor  int64
	total     int64
	sessionID string
	closed    bool
}

func newFakeSessionClient(capMinor int64) *fakeSessionClient {
	return &fakeSessionClient{capMinor: capMinor, sessionID: "sess-remote-1"}
}

func (f *fakeSessionClient) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeSessionClient) OpenOfflineSession(_ context.Context) (*api.OpenSessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errDown
	}
	return &api.OpenSessionResult{SessionID: f.sessionID, CapMinor: f.capMinor}, nil
}

func (f *fakeSessionClient) RecordOfflineSale(_ context.Context, _ string, amountMinor int64, _ string) (*api.SaleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errDown
	}
	prospective := f.total + amountMinor
	if prospective > f.capMinor {
		return &api.SaleResult{
			Blocked:        true,
			TotalMinor:     f.total,
			CapMinor:       f.capMinor,
			RemainingMinor: f.capMinor - f.total,
			PctUsed:        float64(f.total) / float64(f.capMinor) * 100,
		}, nil
	}
	f.total = prospective
	return &api.SaleResult{
		Allowed:        true,
		TotalMinor:     f.total,
		CapMinor:       f.capMinor,
		RemainingMinor: f.capMinor - f.total,
		PctUsed:        float64(f.total) / float64(f.capMinor) * 100,
	}, nil
}

func (f *fakeSessionClient) CloseOfflineSession(_ context.Context, sessionID string) (*domain.RecoveryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errDown
	}
	f.closed = true
	return &domain.RecoveryReport{SessionID: sessionID, CashTotalMinor: f.total}, nil
}

func (f *fakeSessionClient) OverrideOfflineCap(_ context.Context, _ string, newCapMinor int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errDown
	}
	f.capMinor = newCapMinor
	return newCapMinor, nil
}

// fakeReplayClient accepts orders until failAfter replays, then fails every
// call with a transport error.
type fakeReplayClient struct {
	mu        sync.Mutex
	failAfter int
	replayed  []string
}

func (f *fakeReplayClient) ReplayOrder(_ context.Context, order domain.QueuedOrder) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.replayed) >= f.failAfter {
		return "", errDown
	}
	f.replayed = append(f.replayed, order.ID)
	return "srv-" + order.ID, nil
}

func (f *fakeReplayClient) replayedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replayed...)
}

type fakeForwarder struct {
	mu        sync.Mutex
	forwarded []string
	err       error
}

func (f *fakeForwarder) ForwardSynced(_ context.Context, order domain.QueuedOrder, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.forwarded = append(f.forwarded, order.ID)
	return nil
}
