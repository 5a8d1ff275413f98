package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/BrewHubPHL/pos-terminal/internal/api"
)

// DefaultCapMinorUnits bounds cash accepted during an outage when the
// backend never told us a cap.
const DefaultCapMinorUnits int64 = 20000

var ErrCapBlocked = errors.New("offline cash cap reached")

// recoveryReportTTL is how long a closed session's report stays visible
// before it auto dismisses from the status surface.
const recoveryReportTTL = 12 * time.Second

type SessionClient interface {
	OpenOfflineSession(ctx context.Context) (*api.OpenSessionResult, error)
	RecordOfflineSale(ctx context.Context, sessionID string, amountMinor int64, orderID string) (*api.SaleResult, error)
	CloseOfflineSession(ctx context.Context, sessionID string) (*domain.RecoveryReport, error)
	OverrideOfflineCap(ctx context.Context, sessionID string, newCapMinor int64) (int64, error)
}

// SaleDecision is the guard's verdict on one prospective cash sale.
type SaleDecision struct {
	Allowed        bool
	Blocked        bool
	TotalMinor     int64
	CapMinor       int64
	RemainingMinor int64
	PctUsed        float64
}

// Guard enforces the offline cash exposure cap. The backend's session
// ledger is authoritative whenever it answers; a local shadow session
// carries the terminal through total outages and is reconciled away on
// recovery.
type Guard struct {
	api SessionClient

	mu         sync.Mutex
	session    *domain.OfflineSession
	blocked    bool
	orders     int64
	lastReport *domain.RecoveryReport
	reportAt   time.Time
}

func NewGuard(client SessionClient) *Guard {
	return &Guard{api: client}
}

// EnsureSession opens (or resumes) an offline session. When the backend
// cannot be reached the guard falls back to a local-only session with the
// default cap.
func (g *Guard) EnsureSession(ctx context.Context) *domain.OfflineSession {
	g.mu.Lock()
	if g.session != nil {
		s := *g.session
		g.mu.Unlock()
		return &s
	}
	g.mu.Unlock()

	now := time.Now().UTC()
	res, err := g.api.OpenOfflineSession(ctx)
	var session domain.OfflineSession
	if err != nil {
		session = domain.OfflineSession{
			ID:            "local-" + uuid.NewString(),
			CapMinorUnits: DefaultCapMinorUnits,
			OpenedAt:      now,
			LocalOnly:     true,
		}
		log.Warn().Err(err).Str("session_id", session.ID).Msg("offline session opened locally")
	} else {
		session = domain.OfflineSession{
			ID:            res.SessionID,
			CapMinorUnits: res.CapMinor,
			OpenedAt:      now,
		}
		if session.CapMinorUnits <= 0 {
			session.CapMinorUnits = DefaultCapMinorUnits
		}
		log.Info().Str("session_id", session.ID).Bool("resumed", res.Resumed).Msg("offline session open")
	}

	g.mu.Lock()
	g.session = &session
	g.blocked = false
	g.orders = 0
	s := session
	g.mu.Unlock()
	return &s
}

// RecordSale performs the check-and-increment for one cash sale. The remote
// ledger is asked first; if it is unreachable the local shadow total
// decides. A blocked decision also latches the guard so the UI can refuse
// further cash without a round trip.
func (g *Guard) RecordSale(ctx context.Context, amountMinor int64, orderID string) (*SaleDecision, error) {
	if amountMinor <= 0 {
		return nil, fmt.Errorf("sale amount must be positive, got %d", amountMinor)
	}
	session := g.EnsureSession(ctx)

	// The blocked state latches: after one refusal nothing is accepted
	// until a manager override or reconnection, even amounts that would fit.
	g.mu.Lock()
	if g.blocked {
		d := &SaleDecision{
			Blocked:        true,
			TotalMinor:     g.session.CumulativeCash,
			CapMinor:       g.session.CapMinorUnits,
			RemainingMinor: g.session.CapMinorUnits - g.session.CumulativeCash,
			PctUsed:        pct(g.session.CumulativeCash, g.session.CapMinorUnits),
		}
		g.mu.Unlock()
		return d, ErrCapBlocked
	}
	g.mu.Unlock()

	res, err := g.api.RecordOfflineSale(ctx, session.ID, amountMinor, orderID)
	if err == nil {
		g.mu.Lock()
		if g.session != nil {
			// Remote totals win: overwrite whatever the shadow accumulated.
			g.session.CumulativeCash = res.TotalMinor
			g.session.CapMinorUnits = res.CapMinor
		}
		g.blocked = res.Blocked
		if res.Allowed {
			g.orders++
		}
		g.mu.Unlock()
		d := &SaleDecision{
			Allowed:        res.Allowed,
			Blocked:        res.Blocked,
			TotalMinor:     res.TotalMinor,
			CapMinor:       res.CapMinor,
			RemainingMinor: res.RemainingMinor,
			PctUsed:        res.PctUsed,
		}
		if !d.Allowed {
			return d, ErrCapBlocked
		}
		return d, nil
	}
	if !api.IsTransient(err) {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return nil, errors.New("no offline session")
	}
	capMinor := g.session.CapMinorUnits
	prospective := g.session.CumulativeCash + amountMinor
	if prospective > capMinor {
		g.blocked = true
		d := &SaleDecision{
			Blocked:        true,
			TotalMinor:     g.session.CumulativeCash,
			CapMinor:       capMinor,
			RemainingMinor: capMinor - g.session.CumulativeCash,
			PctUsed:        pct(g.session.CumulativeCash, capMinor),
		}
		return d, ErrCapBlocked
	}
	g.session.CumulativeCash = prospective
	g.orders++
	return &SaleDecision{
		Allowed:        true,
		TotalMinor:     prospective,
		CapMinor:       capMinor,
		RemainingMinor: capMinor - prospective,
		PctUsed:        pct(prospective, capMinor),
	}, nil
}

// ReleaseSale backs a recorded sale out of the shadow ledger when the
// order could not be queued after all. The remote ledger, if it saw the
// sale, reconciles on session close.
func (g *Guard) ReleaseSale(amountMinor int64) {
	if amountMinor <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return
	}
	g.session.CumulativeCash -= amountMinor
	if g.session.CumulativeCash < 0 {
		g.session.CumulativeCash = 0
	}
	if g.orders > 0 {
		g.orders--
	}
	log.Warn().Int64("amount", amountMinor).Str("session_id", g.session.ID).Msg("released recorded sale")
}

// OverrideCap raises the session cap after a manager authorizes it and
// unlatches the blocked state.
func (g *Guard) OverrideCap(ctx context.Context, newCapMinor int64) (int64, error) {
	g.mu.Lock()
	session := g.session
	g.mu.Unlock()
	if session == nil {
		return 0, errors.New("no offline session")
	}
	if newCapMinor <= session.CumulativeCash {
		return 0, fmt.Errorf("new cap %d must exceed current total %d", newCapMinor, session.CumulativeCash)
	}

	capMinor := newCapMinor
	if !session.LocalOnly {
		remote, err := g.api.OverrideOfflineCap(ctx, session.ID, newCapMinor)
		if err != nil {
			if !api.IsTransient(err) {
				return 0, err
			}
			log.Warn().Err(err).Msg("cap override applied locally, backend unreachable")
		} else {
			capMinor = remote
		}
	}

	g.mu.Lock()
	if g.session != nil {
		g.session.CapMinorUnits = capMinor
		g.blocked = false
	}
	g.mu.Unlock()
	log.Info().Int64("new_cap", capMinor).Msg("offline cash cap overridden")
	return capMinor, nil
}

// CloseOnReconnect closes the active session against the backend and
// returns the recovery report. Local-only sessions produce a locally
// computed report since the backend never knew about them.
func (g *Guard) CloseOnReconnect(ctx context.Context) (*domain.RecoveryReport, error) {
	g.mu.Lock()
	session := g.session
	orders := g.orders
	g.session = nil
	g.orders = 0
	g.blocked = false
	g.mu.Unlock()
	if session == nil {
		return nil, nil
	}

	if session.LocalOnly {
		report := &domain.RecoveryReport{
			SessionID:       session.ID,
			DurationMinutes: int64(time.Since(session.OpenedAt).Minutes()),
			OrdersCount:     orders,
			CashTotalMinor:  session.CumulativeCash,
		}
		g.keepReport(report)
		return report, nil
	}

	report, err := g.api.CloseOfflineSession(ctx, session.ID)
	if err != nil {
		// Put the session back so the next reconnect retries the close.
		g.mu.Lock()
		if g.session == nil {
			g.session = session
			g.orders = orders
		}
		g.mu.Unlock()
		return nil, fmt.Errorf("close offline session: %w", err)
	}
	g.keepReport(report)
	return report, nil
}

func (g *Guard) keepReport(report *domain.RecoveryReport) {
	if report == nil {
		return
	}
	g.mu.Lock()
	g.lastReport = report
	g.reportAt = time.Now()
	g.mu.Unlock()
}

// RecoveryReport returns the most recent close report until it expires.
func (g *Guard) RecoveryReport() *domain.RecoveryReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastReport == nil || time.Since(g.reportAt) > recoveryReportTTL {
		return nil
	}
	r := *g.lastReport
	return &r
}

// Blocked reports whether the guard has latched on a refused sale.
func (g *Guard) Blocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

// Snapshot summarizes current exposure for the status surface.
func (g *Guard) Snapshot(offline bool, offlineSince *time.Time) domain.ExposureSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := domain.ExposureSnapshot{
		IsOffline:    offline,
		Blocked:      g.blocked,
		OfflineSince: offlineSince,
	}
	if g.session != nil {
		snap.ActiveSessionID = g.session.ID
		snap.CashMinorUnits = g.session.CumulativeCash
		snap.CapMinorUnits = g.session.CapMinorUnits
		snap.PctUsed = pct(g.session.CumulativeCash, g.session.CapMinorUnits)
	}
	return snap
}

func pct(total, cap int64) float64 {
	if cap <= 0 {
		return 0
	}
	return float64(total) / float64(cap) * 100
}
