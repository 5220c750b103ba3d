package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/payments"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/quotations"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

type seqNumbers struct {
	mu sync.Mutex
	n  map[sequence.Entity]int
}

func (s *seqNumbers) GenerateOrFallback(_ context.Context, entity sequence.Entity) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n == nil {
		s.n = map[sequence.Entity]int{}
	}
	s.n[entity]++
	return fmt.Sprintf("%s-%04d", sequence.DefaultSettings(entity).Prefix, s.n[entity])
}

var (
	buyer   = auth.Principal{UserID: "cust-1", Role: users.RoleCustomer}
	other   = auth.Principal{UserID: "cust-2", Role: users.RoleCustomer}
	manager = auth.Principal{UserID: "staff-1", Role: users.RoleBackoffice}
)

type harness struct {
	orders     *Service
	repo       *MemoryRepository
	quotations *quotations.Service
	inquiries  *inquiries.Service
	gateway    *payments.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	numbers := &seqNumbers{}
	inqSvc := inquiries.NewService(inquiries.NewMemoryRepository(), numbers, store, nil)
	directory := users.NewService(users.NewMemoryRepository(users.User{
		ID: buyer.UserID, Name: "Rina", Email: "rina@example.com", Role: users.RoleCustomer, Active: true,
	}))
	quoSvc := quotations.NewService(quotations.Deps{
		Repo:      quotations.NewMemoryRepository(),
		Numbers:   numbers,
		Inquiries: inqSvc,
		Customers: directory,
		Blobs:     store,
	})
	repo := NewMemoryRepository()
	gateway := payments.NewMock("webhook-secret")
	svc := NewService(Deps{
		Repo:       repo,
		Numbers:    numbers,
		Quotations: quoSvc,
		Inquiries:  inqSvc,
		Gateway:    gateway,
	})
	return &harness{orders: svc, repo: repo, quotations: quoSvc, inquiries: inqSvc, gateway: gateway}
}

// acceptedQuotation walks an inquiry through to an accepted quotation.
func (h *harness) acceptedQuotation(t *testing.T, parts []inquiries.Part, items []quotations.Item, total float64) *quotations.Quotation {
	t.Helper()
	ctx := context.Background()
	inq, err := h.inquiries.Create(ctx, buyer, inquiries.CreateRequest{Parts: parts, DeliveryAddress: "Plot 7, MIDC"})
	require.NoError(t, err)
	q, err := h.quotations.Create(ctx, quotations.CreateRequest{InquiryID: inq.ID, Items: items, TotalAmount: total})
	require.NoError(t, err)
	_, err = h.quotations.Send(ctx, q.ID)
	require.NoError(t, err)
	q, err = h.quotations.Accept(ctx, buyer, q.ID)
	require.NoError(t, err)
	return q
}

func steel() []inquiries.Part {
	return []inquiries.Part{{Material: "Steel", Thickness: "2mm", Quantity: 10}}
}

func TestCreateCashOnDeliveryConfirms(t *testing.T) {
	h := newHarness(t)
	q := h.acceptedQuotation(t, steel(), nil, 500)

	order, err := h.orders.Create(context.Background(), buyer, CreateRequest{
		QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-0001", order.OrderNumber)
	assert.Equal(t, StatusConfirmed, order.Status)
	assert.Equal(t, PaymentStatusCompleted, order.Payment.Status)
	assert.Equal(t, PaymentCOD, order.Payment.Method)
	assert.Equal(t, "Plot 7, MIDC", order.DeliveryAddress)
	require.Len(t, order.Timeline, 2)
	assert.Equal(t, StatusPending, order.Timeline[0].Status)
	assert.Equal(t, StatusConfirmed, order.Timeline[1].Status)
	require.Len(t, order.Parts, 1)
	assert.InDelta(t, 50.0, order.Parts[0].UnitPrice, 0.001)

	stored, err := h.quotations.Load(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, quotations.StatusOrderCreated, stored.Status)
	assert.Equal(t, order.ID, stored.OrderID)
}

func TestCreateBankTransferStaysPending(t *testing.T) {
	h := newHarness(t)
	q := h.acceptedQuotation(t, steel(), nil, 500)
	order, err := h.orders.Create(context.Background(), buyer, CreateRequest{
		QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, PaymentStatusPending, order.Payment.Status)
	assert.Len(t, order.Timeline, 1)
}

func TestCreateProportionalParts(t *testing.T) {
	h := newHarness(t)
	q := h.acceptedQuotation(t, []inquiries.Part{
		{Material: "A", Quantity: 2}, {Material: "B", Quantity: 3}, {Material: "C", Quantity: 5},
	}, nil, 100)
	order, err := h.orders.Create(context.Background(), buyer, CreateRequest{QuotationID: q.ID, Amount: 100, PaymentMethod: PaymentCOD})
	require.NoError(t, err)
	require.Len(t, order.Parts, 3)
	assert.InDelta(t, 20.0, order.Parts[0].TotalPrice, 0.001)
	assert.InDelta(t, 30.0, order.Parts[1].TotalPrice, 0.001)
	assert.InDelta(t, 50.0, order.Parts[2].TotalPrice, 0.001)
}

func TestCreateRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.acceptedQuotation(t, steel(), nil, 500)

	_, err := h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 499.5, PaymentMethod: PaymentCOD})
	assert.ErrorIs(t, err, shared.ErrAmountMismatch)

	_, err = h.orders.Create(ctx, other, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: "barter"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.orders.Create(ctx, buyer, CreateRequest{QuotationID: "nope", Amount: 500, PaymentMethod: PaymentCOD})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500.009, PaymentMethod: PaymentCOD})
	require.NoError(t, err, "difference within tolerance")

	_, err = h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestCreateFromUnacceptedQuotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inq, err := h.inquiries.Create(ctx, buyer, inquiries.CreateRequest{Parts: steel(), DeliveryAddress: "x"})
	require.NoError(t, err)
	q, err := h.quotations.Create(ctx, quotations.CreateRequest{InquiryID: inq.ID, TotalAmount: 500})
	require.NoError(t, err)

	_, err = h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	h := newHarness(t)
	q := h.acceptedQuotation(t, steel(), nil, 500)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.orders.Create(context.Background(), buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestFailedInsertReleasesClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.acceptedQuotation(t, steel(), nil, 500)

	h.repo.FailCreate = errors.New("disk full")
	_, err := h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	assert.ErrorIs(t, err, shared.ErrPersistence)

	stored, err := h.quotations.Load(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, quotations.StatusAccepted, stored.Status)

	h.repo.FailCreate = nil
	order, err := h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, order.Status)
}

func TestCreateOnlinePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.acceptedQuotation(t, steel(), nil, 500)

	checkout, err := h.orders.Checkout(ctx, buyer, CheckoutRequest{QuotationID: q.ID})
	require.NoError(t, err)
	paymentID, sig, err := h.gateway.Pay(checkout.ID)
	require.NoError(t, err)

	_, err = h.orders.Create(ctx, buyer, CreateRequest{
		QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentOnline,
		GatewayOrderID: checkout.ID, PaymentID: paymentID, Signature: "forged",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	order, err := h.orders.Create(ctx, buyer, CreateRequest{
		QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentOnline,
		GatewayOrderID: checkout.ID, PaymentID: paymentID, Signature: sig,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, order.Status)
	assert.Equal(t, PaymentOnline, order.Payment.Method)
	assert.Equal(t, paymentID, order.Payment.TransactionID)
	assert.Equal(t, "mock", order.Payment.Gateway)
}

func TestOnlinePaymentUnknownToGatewayIsDependencyError(t *testing.T) {
	h := newHarness(t)
	q := h.acceptedQuotation(t, steel(), nil, 500)
	sig := payments.Sign("webhook-secret", "mock_order_x", "42")
	_, err := h.orders.Create(context.Background(), buyer, CreateRequest{
		QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentOnline,
		GatewayOrderID: "mock_order_x", PaymentID: "42", Signature: sig,
	})
	assert.ErrorIs(t, err, shared.ErrDependency)
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.acceptedQuotation(t, steel(), nil, 500)
	order, err := h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	require.NoError(t, err)

	eta := time.Now().Add(96 * time.Hour).UTC()
	change, err := h.orders.ChangeStatus(ctx, manager, order.ID, StatusChangeRequest{Status: StatusInProduction, EstimatedCompletion: &eta})
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Equal(t, StatusConfirmed, change.OldStatus)

	change, err = h.orders.ChangeStatus(ctx, manager, order.ID, StatusChangeRequest{Status: StatusInProduction})
	require.NoError(t, err)
	assert.False(t, change.Changed, "same status is a no-op")

	_, err = h.orders.RecordDispatch(ctx, manager, order.ID, DispatchRequest{Courier: "BlueDart"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = h.orders.ChangeStatus(ctx, manager, order.ID, StatusChangeRequest{Status: StatusReadyForDispatch})
	require.NoError(t, err)

	change, err = h.orders.RecordDispatch(ctx, manager, order.ID, DispatchRequest{Courier: "BlueDart", TrackingNumber: "BD123"})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, change.Order.Status)
	require.NotNil(t, change.Order.Dispatch.DispatchedAt)
	firstDispatch := *change.Order.Dispatch.DispatchedAt

	change, err = h.orders.RecordDispatch(ctx, manager, order.ID, DispatchRequest{Courier: "BlueDart", TrackingNumber: "BD124"})
	require.NoError(t, err)
	assert.Equal(t, "BD124", change.Order.Dispatch.TrackingNumber)
	assert.Equal(t, firstDispatch, *change.Order.Dispatch.DispatchedAt)

	_, err = h.orders.ConfirmDelivery(ctx, other, order.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	change, err = h.orders.ConfirmDelivery(ctx, buyer, order.ID)
	require.NoError(t, err)
	final := change.Order
	assert.Equal(t, StatusDelivered, final.Status)
	assert.Equal(t, PaymentStatusCompleted, final.Payment.Status)
	assert.NotNil(t, final.Dispatch.ActualDelivery)
	assert.NotNil(t, final.Production.StartDate)
	assert.NotNil(t, final.Production.ActualCompletion)

	var statuses []Status
	for _, e := range final.Timeline {
		statuses = append(statuses, e.Status)
	}
	assert.Equal(t, []Status{StatusPending, StatusConfirmed, StatusInProduction, StatusReadyForDispatch, StatusDispatched, StatusDelivered}, statuses)

	_, err = h.orders.ChangeStatus(ctx, manager, order.ID, StatusChangeRequest{Status: StatusCancelled})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCancelAndRecordRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.acceptedQuotation(t, steel(), nil, 500)
	order, err := h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	require.NoError(t, err)

	change, err := h.orders.ChangeStatus(ctx, manager, order.ID, StatusChangeRequest{Status: StatusCancelled, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, change.Order.Payment.Status)
	assert.Equal(t, "duplicate", change.Order.CancellationReason)

	require.NoError(t, h.orders.RecordRefund(ctx, order.ID, "refund_1"))
	stored, err := h.orders.Load(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "refund_1", stored.Payment.RefundID)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestListScopesCustomers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.acceptedQuotation(t, steel(), nil, 500)
	_, err := h.orders.Create(ctx, buyer, CreateRequest{QuotationID: q.ID, Amount: 500, PaymentMethod: PaymentCOD})
	require.NoError(t, err)

	mine, page, err := h.orders.List(ctx, buyer, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, 1, page.Total)

	theirs, _, err := h.orders.List(ctx, other, ListFilter{CustomerID: buyer.UserID})
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
