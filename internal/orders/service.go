package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/payments"
	"github.com/fabline/fabline/internal/quotations"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/shared"
)

// AmountTolerance is the largest accepted difference between a payment and
// the quotation total.
const AmountTolerance = 0.01

// NumberGenerator issues order numbers.
type NumberGenerator interface {
	GenerateOrFallback(ctx context.Context, entity sequence.Entity) string
}

// QuotationPort is the slice of the quotation service orders depend on.
type QuotationPort interface {
	Load(ctx context.Context, id string) (*quotations.Quotation, error)
	ClaimForOrder(ctx context.Context, id, orderID string) error
	ReleaseClaim(ctx context.Context, id, orderID string) error
}

// InquiryLoader reads the source inquiry for pricing and delivery address.
type InquiryLoader interface {
	Load(ctx context.Context, id string) (*inquiries.Inquiry, error)
}

// Service orchestrates order use cases.
type Service struct {
	repo       Repository
	numbers    NumberGenerator
	quotations QuotationPort
	inquiries  InquiryLoader
	gateway    payments.Gateway
	logger     *slog.Logger
	validator  *validator.Validate
	now        func() time.Time
}

// Deps groups Service collaborators.
type Deps struct {
	Repo       Repository
	Numbers    NumberGenerator
	Quotations QuotationPort
	Inquiries  InquiryLoader
	Gateway    payments.Gateway
	Logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       d.Repo,
		numbers:    d.Numbers,
		quotations: d.Quotations,
		inquiries:  d.Inquiries,
		gateway:    d.Gateway,
		logger:     logger,
		validator:  validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create places an order from an accepted quotation. Cash on delivery and
// verified online payments are confirmed straight away.
func (s *Service) Create(ctx context.Context, actor auth.Principal, req CreateRequest) (*Order, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return nil, err
	}

	q, err := s.quotations.Load(ctx, req.QuotationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && q.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: quotation %s", shared.ErrNotFound, req.QuotationID)
	}
	switch q.Status {
	case quotations.StatusAccepted:
	case quotations.StatusOrderCreated:
		return nil, fmt.Errorf("%w: quotation %s already has an order", shared.ErrConcurrencyConflict, q.QuotationNumber)
	default:
		return nil, fmt.Errorf("%w: quotation %s is %s, not accepted", shared.ErrInvalidTransition, q.QuotationNumber, q.Status)
	}
	if !amountsMatch(req.Amount, q.TotalAmount) {
		return nil, fmt.Errorf("%w: amount %.2f does not match quotation total %.2f", shared.ErrAmountMismatch, req.Amount, q.TotalAmount)
	}

	payment := Payment{Method: req.PaymentMethod, Status: PaymentStatusPending, Amount: q.TotalAmount}
	switch req.PaymentMethod {
	case PaymentCOD, PaymentBankTransfer:
	case PaymentOnline:
		if err := s.verifyOnlinePayment(ctx, req, q.TotalAmount); err != nil {
			return nil, err
		}
		payment.TransactionID = req.PaymentID
		payment.GatewayOrderID = req.GatewayOrderID
		payment.Gateway = s.gateway.Name()
	default:
		return nil, shared.Validationf("unsupported payment method %q", req.PaymentMethod)
	}

	var inquiryParts []inquiries.Part
	deliveryAddress := strings.TrimSpace(req.DeliveryAddress)
	if (len(req.Parts) == 0 && len(q.Items) == 0) || deliveryAddress == "" {
		inq, err := s.inquiries.Load(ctx, q.InquiryID)
		switch {
		case err == nil:
			inquiryParts = inq.Parts
			if deliveryAddress == "" {
				deliveryAddress = inq.DeliveryAddress
			}
		case errors.Is(err, shared.ErrNotFound):
			s.logger.Warn("source inquiry missing for order", slog.String("inquiry_id", q.InquiryID))
		default:
			return nil, err
		}
	}

	now := s.now()
	order := &Order{
		ID:              uuid.NewString(),
		OrderNumber:     s.numbers.GenerateOrFallback(ctx, sequence.EntityOrder),
		QuotationID:     q.ID,
		InquiryID:       q.InquiryID,
		CustomerID:      q.CustomerID,
		Parts:           DeriveParts(req.Parts, q, inquiryParts),
		TotalAmount:     q.TotalAmount,
		Currency:        q.Currency,
		DeliveryAddress: deliveryAddress,
		Status:          StatusPending,
		Payment:         payment,
		Timeline:        []TimelineEntry{timelineEntry(StatusPending, TransitionInput{Actor: actor.UserID}, now)},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.quotations.ClaimForOrder(ctx, q.ID, order.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if relErr := s.quotations.ReleaseClaim(ctx, q.ID, order.ID); relErr != nil {
			s.logger.Error("release quotation claim",
				slog.String("quotation_id", q.ID),
				slog.String("order_id", order.ID),
				slog.Any("error", relErr))
		}
		return nil, shared.Persistence("insert order", err)
	}
	s.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("quotation_id", q.ID),
		slog.String("payment_method", string(req.PaymentMethod)))

	if req.PaymentMethod == PaymentCOD || req.PaymentMethod == PaymentOnline {
		confirmed, _, err := Transition(*order, StatusConfirmed, TransitionInput{Actor: actor.UserID}, s.now())
		if err != nil {
			return nil, err
		}
		ok, err := s.repo.UpdateIf(ctx, &confirmed, StatusPending)
		if err != nil || !ok {
			s.logger.Error("confirm new order",
				slog.String("order_id", order.ID),
				slog.Bool("matched", ok),
				slog.Any("error", err))
			return order, nil
		}
		return &confirmed, nil
	}
	return order, nil
}

func (s *Service) verifyOnlinePayment(ctx context.Context, req CreateRequest, total float64) error {
	if s.gateway == nil {
		return fmt.Errorf("%w: payment gateway not configured", shared.ErrDependency)
	}
	if req.GatewayOrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return shared.Validationf("gatewayOrderId, paymentId and signature are required for online payments")
	}
	if !s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		return shared.Validationf("payment signature is invalid")
	}
	details, err := s.gateway.FetchPaymentDetails(ctx, req.PaymentID)
	if err != nil {
		return fmt.Errorf("%w: fetch payment %s: %v", shared.ErrDependency, req.PaymentID, err)
	}
	if details.Status != payments.StatusApproved {
		return shared.Validationf("payment %s is %s", req.PaymentID, details.Status)
	}
	if !amountsMatch(details.Amount, total) {
		return fmt.Errorf("%w: paid %.2f, quotation total %.2f", shared.ErrAmountMismatch, details.Amount, total)
	}
	return nil
}

// Checkout opens a gateway order for an accepted quotation.
func (s *Service) Checkout(ctx context.Context, actor auth.Principal, req CheckoutRequest) (payments.GatewayOrder, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return payments.GatewayOrder{}, err
	}
	if s.gateway == nil {
		return payments.GatewayOrder{}, fmt.Errorf("%w: payment gateway not configured", shared.ErrDependency)
	}
	q, err := s.quotations.Load(ctx, req.QuotationID)
	if err != nil {
		return payments.GatewayOrder{}, err
	}
	if !actor.IsStaff() && q.CustomerID != actor.UserID {
		return payments.GatewayOrder{}, fmt.Errorf("%w: quotation %s", shared.ErrNotFound, req.QuotationID)
	}
	if q.Status != quotations.StatusAccepted {
		return payments.GatewayOrder{}, fmt.Errorf("%w: quotation %s is %s, not accepted", shared.ErrInvalidTransition, q.QuotationNumber, q.Status)
	}
	var inquiryParts []inquiries.Part
	if len(q.Items) == 0 {
		if inq, err := s.inquiries.Load(ctx, q.InquiryID); err == nil {
			inquiryParts = inq.Parts
		}
	}
	var items []payments.LineItem
	for _, p := range DeriveParts(nil, q, inquiryParts) {
		if p.Quantity <= 0 {
			items = nil
			break
		}
		items = append(items, payments.LineItem{Title: p.Material + " " + p.Thickness, Quantity: p.Quantity, UnitPrice: p.UnitPrice})
	}
	// Rounded unit prices may not multiply back to the total; fall back to a single line.
	if !amountsMatch(lineTotal(items), q.TotalAmount) {
		items = nil
	}
	order, err := s.gateway.CreateOrder(ctx, payments.OrderInput{
		Amount:   q.TotalAmount,
		Currency: q.Currency,
		Receipt:  q.QuotationNumber,
		Items:    items,
	})
	if err != nil {
		return payments.GatewayOrder{}, fmt.Errorf("%w: %v", shared.ErrDependency, err)
	}
	return order, nil
}

// Get loads an order visible to actor.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: order %s", shared.ErrNotFound, id)
	}
	return o, nil
}

// Load fetches an order without an access check.
func (s *Service) Load(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of orders. Customers only see their own.
func (s *Service) List(ctx context.Context, actor auth.Principal, filter ListFilter) ([]Order, shared.Pagination, error) {
	if !actor.IsStaff() {
		filter.CustomerID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown order status %q", filter.Status)
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Change is the outcome of a status operation.
type Change struct {
	Order     *Order
	OldStatus Status
	Changed   bool
}

// ChangeStatus applies a back-office status update.
func (s *Service) ChangeStatus(ctx context.Context, actor auth.Principal, id string, req StatusChangeRequest) (Change, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return Change{}, err
	}
	return s.transition(ctx, id, req.Status, TransitionInput{
		Actor:               actor.UserID,
		Note:                strings.TrimSpace(req.Note),
		EstimatedCompletion: req.EstimatedCompletion,
		Reason:              req.Reason,
	}, nil)
}

// RecordDispatch ships a ready order, or updates the shipping details of
// one already dispatched.
func (s *Service) RecordDispatch(ctx context.Context, actor auth.Principal, id string, req DispatchRequest) (Change, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return Change{}, err
	}
	details := func(o *Order) {
		if o.Dispatch == nil {
			o.Dispatch = &Dispatch{}
		}
		o.Dispatch.Courier = strings.TrimSpace(req.Courier)
		o.Dispatch.TrackingNumber = strings.TrimSpace(req.TrackingNumber)
		if req.EstimatedDelivery != nil {
			eta := *req.EstimatedDelivery
			o.Dispatch.EstimatedDelivery = &eta
		}
		if req.Notes != "" {
			o.Dispatch.Notes = req.Notes
		}
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Change{}, err
	}
	switch current.Status {
	case StatusReadyForDispatch:
		return s.transition(ctx, id, StatusDispatched, TransitionInput{Actor: actor.UserID}, details)
	case StatusDispatched:
		next := current.Clone()
		details(&next)
		next.UpdatedAt = s.now()
		if err := s.write(ctx, &next, current.Status); err != nil {
			return Change{}, err
		}
		return Change{Order: &next, OldStatus: current.Status, Changed: true}, nil
	default:
		return Change{}, fmt.Errorf("%w: order %s is %s, not ready for dispatch",
			shared.ErrInvalidTransition, current.OrderNumber, current.Status)
	}
}

// ConfirmDelivery marks a dispatched order delivered. The owning customer
// may confirm their own delivery.
func (s *Service) ConfirmDelivery(ctx context.Context, actor auth.Principal, id string) (Change, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return Change{}, err
	}
	return s.transition(ctx, id, StatusDelivered, TransitionInput{Actor: actor.UserID}, nil)
}

// RecordRefund stores the gateway refund id on a cancelled order.
func (s *Service) RecordRefund(ctx context.Context, id, refundID string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	o.Payment.RefundID = refundID
	o.UpdatedAt = s.now()
	return s.write(ctx, o, o.Status)
}

func (s *Service) transition(ctx context.Context, id string, target Status, in TransitionInput, extra func(*Order)) (Change, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Change{}, err
	}
	next, changed, err := Transition(*current, target, in, s.now())
	if err != nil {
		return Change{}, err
	}
	if !changed {
		return Change{Order: current, OldStatus: current.Status}, nil
	}
	if extra != nil {
		extra(&next)
	}
	if err := s.write(ctx, &next, current.Status); err != nil {
		return Change{}, err
	}
	s.logger.Info("order status changed",
		slog.String("order_id", next.ID),
		slog.String("from", string(current.Status)),
		slog.String("to", string(next.Status)),
		slog.String("actor", in.Actor))
	return Change{Order: &next, OldStatus: current.Status, Changed: true}, nil
}

func (s *Service) write(ctx context.Context, o *Order, expected Status) error {
	ok, err := s.repo.UpdateIf(ctx, o, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed concurrently", shared.ErrConcurrencyConflict, o.OrderNumber)
	}
	return nil
}

func amountsMatch(a, b float64) bool {
	return math.Abs(a-b) <= AmountTolerance+1e-9
}

func lineTotal(items []payments.LineItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}
