package api

import (
	"context"
	"errors"
	"time"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

// OrderItem is the wire shape of one cart line. Prices for ordinary items are
// resolved from the catalog server-side; the client-sent price is honored only
// for open-price categories.
type OrderItem struct {
	ProductRef string   `json:"product_ref"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	Modifiers  []string `json:"modifiers,omitempty"`
	StaffPrice int64    `json:"staff_price_cents,omitempty"`
}

type CreateOrderRequest struct {
	Items         []OrderItem          `json:"cart"`
	Terminal      bool                 `json:"terminal"`
	PaymentMethod domain.PaymentMethod `json:"payment_method,omitempty"`
	CompReason    string               `json:"comp_reason,omitempty"`
	// ClientOrderID and QueuedAt tag offline replays so the server can
	// deduplicate a retried submission.
	ClientOrderID string     `json:"client_order_id,omitempty"`
	QueuedAt      *time.Time `json:"queued_at,omitempty"`
}

type createOrderResponse struct {
	Order struct {
		ID string `json:"id"`
	} `json:"order"`
}

var ErrNoOrderID = errors.New("no order id returned")

// CreateOrder creates an order awaiting terminal payment. The order lands on
// the KDS immediately; payment is collected in a separate step.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	req.Terminal = true
	var resp createOrderResponse
	if err := c.post(ctx, "create order", "/cafe-checkout", req, &resp); err != nil {
		return "", err
	}
	if resp.Order.ID == "" {
		return "", ErrNoOrderID
	}
	return resp.Order.ID, nil
}

// CashCheckout creates and charges an order in one atomic server call.
// Used for cash and comp; comp requires a non-empty reason.
func (c *Client) CashCheckout(ctx context.Context, items []OrderItem, method domain.PaymentMethod, compReason string) (string, error) {
	req := CreateOrderRequest{
		Items:         items,
		Terminal:      false,
		PaymentMethod: method,
		CompReason:    compReason,
	}
	path := "/cafe-checkout"
	if method == domain.MethodComp {
		path = "/process-comp"
	}
	var resp createOrderResponse
	if err := c.post(ctx, "cash checkout", path, req, &resp); err != nil {
		return "", err
	}
	if resp.Order.ID == "" {
		return "", ErrNoOrderID
	}
	return resp.Order.ID, nil
}

// ReplayOrder resubmits an offline-queued order. The queued id and timestamp
// ride along so a retried replay dedupes server-side instead of double-creating.
func (c *Client) ReplayOrder(ctx context.Context, order domain.QueuedOrder) (string, error) {
	items := make([]OrderItem, 0, len(order.Items))
	for _, l := range order.Items {
		items = append(items, LineToOrderItem(l))
	}
	queuedAt := order.CreatedAt
	req := CreateOrderRequest{
		Items:         items,
		Terminal:      false,
		PaymentMethod: order.PaymentMethod,
		ClientOrderID: order.ID,
		QueuedAt:      &queuedAt,
	}
	var resp createOrderResponse
	if err := c.post(ctx, "replay order", "/cafe-checkout", req, &resp); err != nil {
		return "", err
	}
	if resp.Order.ID == "" {
		return "", ErrNoOrderID
	}
	return resp.Order.ID, nil
}

// MarkPaidCash records a cash payment for an already-created order
// (the cash fallback from the Confirm phase).
func (c *Client) MarkPaidCash(ctx context.Context, orderID string) error {
	body := map[string]string{
		"orderId":       orderID,
		"status":        "preparing",
		"paymentMethod": "cash",
	}
	return c.post(ctx, "mark paid cash", "/update-order-status", body, nil)
}

// VoidOrder issues the compensating delete for a created-but-unpaid order.
func (c *Client) VoidOrder(ctx context.Context, orderID string) error {
	body := map[string]string{"orderId": orderID}
	return c.post(ctx, "void order", "/cancel-order", body, nil)
}

// LineToOrderItem converts a cart line to its wire shape. The staff price is
// sent only for open-price lines; the server ignores it otherwise.
func LineToOrderItem(l domain.CartLine) OrderItem {
	mods := make([]string, 0, len(l.Modifiers))
	for _, m := range l.Modifiers {
		mods = append(mods, m.Name)
	}
	item := OrderItem{
		ProductRef: l.ProductRef,
		Name:       l.Name,
		Quantity:   l.Quantity,
		Modifiers:  mods,
	}
	if l.OpenPrice {
		item.StaffPrice = l.UnitPrice
	}
	return item
}
