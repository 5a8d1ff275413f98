package api

import (
	"context"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

type initiatePaymentResponse struct {
	Checkout struct {
		ID string `json:"id"`
	} `json:"checkout"`
}

// InitiatePayment pushes the order to the card terminal. A 409 CallError means
// "may already be paid; verify via status check, do not assume".
func (c *Client) InitiatePayment(ctx context.Context, orderID string) (string, error) {
	body := map[string]string{"orderId": orderID}
	var resp initiatePaymentResponse
	if err := c.post(ctx, "initiate payment", "/collect-payment", body, &resp); err != nil {
		return "", err
	}
	return resp.Checkout.ID, nil
}

type paymentStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PaymentStatus asks the backend whether the customer has tapped yet.
// Non-definitive terminal states (IN_PROGRESS, POLL_ERROR, ...) map to PENDING
// so the poller keeps going; only the four domain statuses are ever returned.
func (c *Client) PaymentStatus(ctx context.Context, orderID string) (domain.PaymentStatus, string, error) {
	body := map[string]string{"orderId": orderID}
	var resp paymentStatusResponse
	if err := c.post(ctx, "payment status", "/poll-terminal-payment", body, &resp); err != nil {
		return "", "", err
	}

	switch domain.PaymentStatus(resp.Status) {
	case domain.PaymentStatusCompleted:
		return domain.PaymentStatusCompleted, resp.Message, nil
	case domain.PaymentStatusAlreadyConfirmed:
		return domain.PaymentStatusAlreadyConfirmed, resp.Message, nil
	case domain.PaymentStatusCanceled:
		return domain.PaymentStatusCanceled, resp.Message, nil
	default:
		return domain.PaymentStatusPending, resp.Message, nil
	}
}
