// Package payments talks to the online payment gateway used for checkout,
// verification and refunds.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Gateway payment statuses.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
	StatusRefunded = "refunded"
)

// LineItem is one priced line on a checkout.
type LineItem struct {
	Title     string
	Quantity  int
	UnitPrice float64
}

// OrderInput describes a checkout to open at the gateway.
type OrderInput struct {
	Amount   float64
	Currency string
	// Receipt is our reference, echoed back on payments.
	Receipt string
	Items   []LineItem
}

// GatewayOrder is an opened checkout.
type GatewayOrder struct {
	ID          string  `json:"gatewayOrderId"`
	CheckoutURL string  `json:"checkoutUrl"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Gateway     string  `json:"gateway"`
}

// Details is what the gateway reports about a payment.
type Details struct {
	ID        string
	Amount    float64
	Status    string
	Method    string
	Reference string
}

// Gateway is the payment provider contract.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, in OrderInput) (GatewayOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
	FetchPaymentDetails(ctx context.Context, paymentID string) (Details, error)
	// Refund returns the refund id. A nil amount refunds in full.
	Refund(ctx context.Context, paymentID string, amount *float64) (string, error)
}

// Sign computes the checkout signature over gatewayOrderID|paymentID.
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, gatewayOrderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
