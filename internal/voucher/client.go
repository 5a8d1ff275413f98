package voucher

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/BrewHubPHL/pos-terminal/internal/api"
)

// ErrRetrySafe marks redemption attempts that died in transit. The backend
// burns vouchers atomically and answers ALREADY_REDEEMED on a repeat, so
// retrying the same code is always safe.
var ErrRetrySafe = errors.New("voucher redemption interrupted, retry is safe")

var ErrOffline = errors.New("voucher redemption requires a connection")

type RedeemClient interface {
	RedeemVoucher(ctx context.Context, code, orderID string) error
}

type Connectivity interface {
	Online() bool
}

// Result reports one redemption attempt.
type Result struct {
	Applied         bool
	AlreadyRedeemed bool
	Message         string
}

// Client wraps the backend voucher endpoint with the retry semantics the
// register needs: a duplicate redemption for the same order counts as
// success, not fraud.
type Client struct {
	api     RedeemClient
	monitor Connectivity
}

func NewClient(redeemer RedeemClient, monitor Connectivity) *Client {
	return &Client{api: redeemer, monitor: monitor}
}

// Redeem burns the voucher against an order. Vouchers are refused outright
// while offline, queueing one locally would let the same code be spent at
// two terminals.
func (c *Client) Redeem(ctx context.Context, code, orderID string) (*Result, error) {
	if c.monitor != nil && !c.monitor.Online() {
		return nil, ErrOffline
	}

	err := c.api.RedeemVoucher(ctx, code, orderID)
	if err == nil {
		log.Info().Str("order_id", orderID).Msg("voucher redeemed")
		return &Result{Applied: true, Message: "Voucher applied"}, nil
	}

	if api.IsTransient(err) {
		return nil, ErrRetrySafe
	}

	var callErr *api.CallError
	if errors.As(err, &callErr) && callErr.Code == api.CodeAlreadyRedeemed {
		// The earlier attempt landed, the ack did not. Same outcome.
		log.Info().Str("order_id", orderID).Msg("voucher already redeemed for this order")
		return &Result{Applied: true, AlreadyRedeemed: true, Message: "Voucher already applied to this order"}, nil
	}
	return nil, err
}
