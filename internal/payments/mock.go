package payments

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Mock is a deterministic in-process gateway. Every payment it reports is
// approved for the amount of the checkout it belongs to.
type Mock struct {
	secret string

	mu       sync.Mutex
	orders   map[string]OrderInput
	payments map[string]Details
	refunds  []string
	seq      int
}

// NewMock builds a Mock signing with secret.
func NewMock(secret string) *Mock {
	return &Mock{secret: secret, orders: map[string]OrderInput{}, payments: map[string]Details{}}
}

// Name implements Gateway.
func (m *Mock) Name() string { return "mock" }

// CreateOrder implements Gateway.
func (m *Mock) CreateOrder(_ context.Context, in OrderInput) (GatewayOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("mock_order_%d", m.seq)
	m.orders[id] = in
	return GatewayOrder{ID: id, CheckoutURL: "https://checkout.invalid/" + id, Amount: in.Amount, Currency: in.Currency, Gateway: m.Name()}, nil
}

// Pay records an approved payment against gatewayOrderID and returns its id
// and signature, the way the hosted checkout would hand them to the client.
func (m *Mock) Pay(gatewayOrderID string) (paymentID, signature string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.orders[gatewayOrderID]
	if !ok {
		return "", "", fmt.Errorf("payments: unknown gateway order %s", gatewayOrderID)
	}
	m.seq++
	paymentID = strconv.Itoa(100000 + m.seq)
	m.payments[paymentID] = Details{ID: paymentID, Amount: in.Amount, Status: StatusApproved, Method: "mock", Reference: in.Receipt}
	return paymentID, Sign(m.secret, gatewayOrderID, paymentID), nil
}

// VerifySignature implements Gateway.
func (m *Mock) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verify(m.secret, gatewayOrderID, paymentID, signature)
}

// FetchPaymentDetails implements Gateway.
func (m *Mock) FetchPaymentDetails(_ context.Context, paymentID string) (Details, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.payments[paymentID]
	if !ok {
		return Details{}, fmt.Errorf("payments: unknown payment %s", paymentID)
	}
	return d, nil
}

// Refund implements Gateway.
func (m *Mock) Refund(_ context.Context, paymentID string, _ *float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.payments[paymentID]
	if !ok {
		return "", fmt.Errorf("payments: unknown payment %s", paymentID)
	}
	d.Status = StatusRefunded
	m.payments[paymentID] = d
	m.refunds = append(m.refunds, paymentID)
	return "refund_" + paymentID, nil
}

// Refunds lists refunded payment ids.
func (m *Mock) Refunds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.refunds...)
}
