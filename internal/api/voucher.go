package api

import "context"

// RedeemVoucher burns a loyalty voucher against an order. The call is
// idempotent server-side, keyed by the voucher code: a repeat answers
// ALREADY_REDEEMED instead of burning twice.
func (c *Client) RedeemVoucher(ctx context.Context, code, orderID string) error {
	body := map[string]string{"code": code, "orderId": orderID}
	return c.post(ctx, "redeem voucher", "/redeem-voucher", body, nil)
}
