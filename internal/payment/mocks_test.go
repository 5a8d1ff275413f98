package payment

import (
	"context"
	"sync"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

// scriptedStatusClient returns queued responses in order, repeating the last
// one once the script is exhausted.
type scriptedStatusClient struct {
	mu     sync.Mutex
	script []statusReply
	calls  int
}

type statusReply struct {
	status  domain.PaymentStatus
	message string
	err     error
}

func (c *scriptedStatusClient) PaymentStatus(_ context.Context, _ string) (domain.PaymentStatus, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++
	reply := c.script[idx]
	return reply.status, reply.message, reply.err
}

func (c *scriptedStatusClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// scriptedInitiationClient fails with the queued errors, then succeeds.
type scriptedInitiationClient struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (c *scriptedInitiationClient) InitiatePayment(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	return "sq-checkout-1", nil
}

func (c *scriptedInitiationClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
