package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Server error codes carried in CallError.Code.
const (
	CodeAlreadyRedeemed = "ALREADY_REDEEMED"
	CodeDailyLimit      = "DAILY_LIMIT"
	CodeNotFound        = "NOT_FOUND"
	CodeCapReached      = "CAP_REACHED"
)

// TransientError marks a transport-level failure (timeout, abort, refused
// connection, open circuit). The call may or may not have reached the server,
// so it is never treated as a definitive outcome.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// CallError is a semantic failure: the server answered with an error body.
// These are surfaced directly and never retried.
type CallError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *CallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsConflict reports whether initiation answered "may already be paid".
func IsConflict(err error) bool {
	var c *CallError
	return errors.As(err, &c) && c.Status == http.StatusConflict
}

func ErrorCode(err error) string {
	var c *CallError
	if errors.As(err, &c) {
		return c.Code
	}
	return ""
}
