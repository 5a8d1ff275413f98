package voucher

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrewHubPHL/pos-terminal/internal/api"
)

type scriptedRedeemer struct {
	errs  []error
	calls int
}

func (s *scriptedRedeemer) RedeemVoucher(_ context.Context, _, _ string) error {
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	return err
}

type fixedConnectivity bool

func (f fixedConnectivity) Online() bool { return bool(f) }

func TestRedeemSuccess(t *testing.T) {
	client := NewClient(&scriptedRedeemer{}, fixedConnectivity(true))

	res, err := client.Redeem(context.Background(), "GIFT-100", "order-1")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.False(t, res.AlreadyRedeemed)
}

func TestRedeemTransientIsRetrySafe(t *testing.T) {
	backend := &scriptedRedeemer{errs: []error{
		&api.TransientError{Op: "POST /redeem-voucher", Err: errors.New("connection reset")},
	}}
	client := NewClient(backend, fixedConnectivity(true))

	_, err := client.Redeem(context.Background(), "GIFT-100", "order-1")
	require.ErrorIs(t, err, ErrRetrySafe)

	// The retry finds the voucher already burned and reports success.
	backend.errs = append(backend.errs, &api.CallError{
		Status: http.StatusConflict,
		Code:   api.CodeAlreadyRedeemed,
	})
	res, err := client.Redeem(context.Background(), "GIFT-100", "order-1")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, res.AlreadyRedeemed)
}

func TestRedeemSemanticFailureSurfaces(t *testing.T) {
	backend := &scriptedRedeemer{errs: []error{
		&api.CallError{Status: http.StatusNotFound, Code: api.CodeNotFound, Message: "unknown voucher"},
	}}
	client := NewClient(backend, fixedConnectivity(true))

	_, err := client.Redeem(context.Background(), "BOGUS", "order-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRetrySafe)
	var callErr *api.CallError
	require.ErrorAs(t, err, &callErr)
}

func TestRedeemRefusedOffline(t *testing.T) {
	backend := &scriptedRedeemer{}
	client := NewClient(backend, fixedConnectivity(false))

	_, err := client.Redeem(context.Background(), "GIFT-100", "order-1")
	require.ErrorIs(t, err, ErrOffline)
	require.Zero(t, backend.calls)
}
