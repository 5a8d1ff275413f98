package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

type offlineAction struct {
	Action     string `json:"action"`
	SessionID  string `json:"session_id,omitempty"`
	AmountMnr  int64  `json:"amount_cents,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	NewCapMnr  int64  `json:"new_cap_cents,omitempty"`
	TerminalID string `json:"terminal_id,omitempty"`
}

type OpenSessionResult struct {
	SessionID string `json:"session_id"`
	CapMinor  int64  `json:"cap_cents"`
	Resumed   bool   `json:"already_open"`
}

// OpenOfflineSession opens (or resumes) the terminal's offline session and
// returns the server-authorized cash cap.
func (c *Client) OpenOfflineSession(ctx context.Context) (*OpenSessionResult, error) {
	var out OpenSessionResult
	err := c.post(ctx, "open offline session", "/offline-session", offlineAction{Action: "open"}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type SaleResult struct {
	Allowed        bool    `json:"allowed"`
	Blocked        bool    `json:"blocked"`
	TotalMinor     int64   `json:"total_cents"`
	CapMinor       int64   `json:"cap_cents"`
	RemainingMinor int64   `json:"remaining_cents"`
	PctUsed        float64 `json:"pct_used"`
}

// RecordOfflineSale is the server-side atomic check-and-increment. A refusal
// comes back as 403 with the running totals; that is a decision, not an error.
func (c *Client) RecordOfflineSale(ctx context.Context, sessionID string, amountMinor int64, orderID string) (*SaleResult, error) {
	body := offlineAction{
		Action:    "record_sale",
		SessionID: sessionID,
		AmountMnr: amountMinor,
		OrderID:   orderID,
	}
	var out SaleResult
	err := c.post(ctx, "record offline sale", "/offline-session", body, &out)
	if err == nil {
		out.Allowed = true
		return &out, nil
	}

	var ce *CallError
	if errors.As(err, &ce) && ce.Status == http.StatusForbidden {
		var refused SaleResult
		if jsonErr := json.Unmarshal(ce.Body, &refused); jsonErr == nil && refused.Blocked {
			refused.Allowed = false
			return &refused, nil
		}
	}
	return nil, err
}

// CloseOfflineSession ends the session on reconnect and returns the one-time
// recovery report. A nil report means there was no active session.
func (c *Client) CloseOfflineSession(ctx context.Context, sessionID string) (*domain.RecoveryReport, error) {
	body := offlineAction{Action: "close", SessionID: sessionID}
	var out domain.RecoveryReport
	if err := c.post(ctx, "close offline session", "/offline-session", body, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, nil
	}
	return &out, nil
}

type overrideCapResponse struct {
	Success bool  `json:"success"`
	NewCap  int64 `json:"new_cap_cents"`
}

// OverrideOfflineCap raises the cap. Manager authorization is enforced
// server-side; a non-manager token gets a semantic 403.
func (c *Client) OverrideOfflineCap(ctx context.Context, sessionID string, newCapMinor int64) (int64, error) {
	body := offlineAction{Action: "override_cap", SessionID: sessionID, NewCapMnr: newCapMinor}
	var out overrideCapResponse
	if err := c.post(ctx, "override offline cap", "/offline-session", body, &out); err != nil {
		return 0, err
	}
	return out.NewCap, nil
}

// OfflineStatus returns the server's view of current exposure.
func (c *Client) OfflineStatus(ctx context.Context) (*domain.ExposureSnapshot, error) {
	var out domain.ExposureSnapshot
	if err := c.post(ctx, "offline status", "/offline-session", offlineAction{Action: "status"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
