package domain

import "time"

// OfflineSession is the bounded cash-acceptance window while partitioned.
// At most one is active per terminal.
type OfflineSession struct {
	ID             string     `json:"session_id"`
	CapMinorUnits  int64      `json:"cap_minor_units"`
	CumulativeCash int64      `json:"cumulative_cash_minor_units"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	LocalOnly      bool       `json:"local_only"`
}

// QueuedOrder is an order created while offline. Immutable once created;
// Synced flips false -> true exactly once.
type QueuedOrder struct {
	ID             string        `json:"id"`
	Items          []CartLine    `json:"items"`
	TotalMinor     int64         `json:"total_minor_units"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	CreatedAt      time.Time     `json:"created_at"`
	Synced         bool          `json:"synced"`
	OfflineSession string        `json:"offline_session_id,omitempty"`
}

// RecoveryReport summarizes one closed offline session.
type RecoveryReport struct {
	SessionID       string `json:"session_id"`
	DurationMinutes int64  `json:"duration_minutes"`
	OrdersCount     int64  `json:"orders_count"`
	CashTotalMinor  int64  `json:"cash_total_cents"`
}

// ExposureSnapshot is the current offline exposure as shown to managers.
type ExposureSnapshot struct {
	ActiveSessionID string     `json:"active_session_id,omitempty"`
	IsOffline       bool       `json:"is_offline"`
	CashMinorUnits  int64      `json:"current_cash_cents"`
	CapMinorUnits   int64      `json:"current_cap_cents"`
	PctUsed         float64    `json:"current_pct_used"`
	Blocked         bool       `json:"blocked"`
	OfflineSince    *time.Time `json:"offline_since,omitempty"`
}
