package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	sig := Sign("s3cret", "pref_1", "99")
	assert.True(t, verify("s3cret", "pref_1", "99", sig))
	assert.False(t, verify("s3cret", "pref_1", "100", sig))
	assert.False(t, verify("other", "pref_1", "99", sig))
	assert.False(t, verify("", "pref_1", "99", sig))
}

func TestMockCheckoutLifecycle(t *testing.T) {
	ctx := context.Background()
	gw := NewMock("s3cret")

	order, err := gw.CreateOrder(ctx, OrderInput{Amount: 500, Currency: "INR", Receipt: "QUO-0001"})
	require.NoError(t, err)
	assert.Equal(t, "mock", order.Gateway)

	paymentID, sig, err := gw.Pay(order.ID)
	require.NoError(t, err)
	assert.True(t, gw.VerifySignature(order.ID, paymentID, sig))

	details, err := gw.FetchPaymentDetails(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, details.Status)
	assert.InDelta(t, 500.0, details.Amount, 0.001)
	assert.Equal(t, "QUO-0001", details.Reference)

	refundID, err := gw.Refund(ctx, paymentID, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, refundID)
	assert.Equal(t, []string{paymentID}, gw.Refunds())

	_, _, err = gw.Pay("missing")
	assert.Error(t, err)
}

func TestMercadoPagoRequiresToken(t *testing.T) {
	_, err := NewMercadoPago("", "secret", nil)
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}
