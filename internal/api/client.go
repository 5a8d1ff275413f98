package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenProvider supplies the staff session token for each call. The PIN /
// biometric login flow that issues tokens is an external collaborator.
type TokenProvider interface {
	Token() (string, error)
}

type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

const csrfHeader = "X-Requested-With"

type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   TokenProvider
}

// Client talks to the backend order/payment endpoints over HTTP/JSON.
// Every call carries the staff token and the anti-forgery header; transport
// failures are wrapped as *TransientError, error responses as *CallError.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenProvider
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "pos-backend",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transport failures trip the breaker. A semantic error body
		// means the server is reachable.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		token:   cfg.Token,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// Health probes the backend health endpoint. It bypasses the circuit breaker
// so the connectivity monitor can observe recovery while the breaker is open.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: "health", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &TransientError{Op: "health", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	return c.call(ctx, op, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	return c.call(ctx, op, http.MethodGet, path, nil, out)
}

func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, op, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransientError{Op: op, Err: err}
	}
	if err != nil {
		return err
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeader, "brewhub-pos")
	if c.token != nil {
		token, tokenErr := c.token.Token()
		if tokenErr != nil {
			return nil, fmt.Errorf("%s: resolve token: %w", op, tokenErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return nil, &CallError{
			Status:  resp.StatusCode,
			Code:    eb.Code,
			Message: eb.Error,
			Body:    raw,
		}
	}
	return raw, nil
}
