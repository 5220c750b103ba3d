package quotations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

// MaxDocumentSize bounds uploaded quotation PDFs.
const MaxDocumentSize = 20 << 20

// NumberGenerator issues quotation numbers.
type NumberGenerator interface {
	GenerateOrFallback(ctx context.Context, entity sequence.Entity) string
}

// InquiryPort is the slice of the inquiry service quotations drive.
type InquiryPort interface {
	Load(ctx context.Context, id string) (*inquiries.Inquiry, error)
	SyncStatus(ctx context.Context, id string, to inquiries.Status) error
	MarkQuoted(ctx context.Context, id string, priced []inquiries.Part) error
}

// CustomerDirectory resolves customer details for the snapshot.
type CustomerDirectory interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// DocumentRenderer turns HTML into a PDF.
type DocumentRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Service orchestrates quotation use cases.
type Service struct {
	repo      Repository
	numbers   NumberGenerator
	inquiries InquiryPort
	customers CustomerDirectory
	blobs     blob.Store
	renderer  DocumentRenderer
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// Deps groups Service collaborators.
type Deps struct {
	Repo      Repository
	Numbers   NumberGenerator
	Inquiries InquiryPort
	Customers CustomerDirectory
	Blobs     blob.Store
	Renderer  DocumentRenderer
	Logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      d.Repo,
		numbers:   d.Numbers,
		inquiries: d.Inquiries,
		customers: d.Customers,
		blobs:     d.Blobs,
		renderer:  d.Renderer,
		logger:    logger,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create drafts a quotation for an inquiry and freezes the customer's details.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Quotation, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return nil, err
	}
	inq, err := s.inquiries.Load(ctx, req.InquiryID)
	if err != nil {
		return nil, err
	}
	if inq.Status == inquiries.StatusAccepted || inq.Status == inquiries.StatusRejected {
		return nil, fmt.Errorf("%w: inquiry %s is %s", shared.ErrInvalidTransition, inq.InquiryNumber, inq.Status)
	}
	customer, err := s.customers.Get(ctx, inq.CustomerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.Validationf("customer %s of inquiry %s not found", inq.CustomerID, inq.InquiryNumber)
		}
		return nil, err
	}

	items := priceItems(req.Items)
	total := decimal.NewFromFloat(req.TotalAmount).Round(2)
	if total.IsZero() {
		for _, it := range items {
			total = total.Add(decimal.NewFromFloat(it.TotalPrice))
		}
	}
	if !total.IsPositive() {
		return nil, shared.Validationf("totalAmount must be positive")
	}
	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.now()
	q := &Quotation{
		ID:              uuid.NewString(),
		QuotationNumber: s.numbers.GenerateOrFallback(ctx, sequence.EntityQuotation),
		InquiryID:       inq.ID,
		CustomerID:      inq.CustomerID,
		CustomerInfo: CustomerInfo{
			Name:    customer.Name,
			Company: customer.Company,
			Email:   customer.Email,
			Phone:   customer.Phone,
		},
		Items:       items,
		TotalAmount: total.InexactFloat64(),
		Currency:    currency,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("quotation created",
		slog.String("quotation_id", q.ID),
		slog.String("quotation_number", q.QuotationNumber),
		slog.String("inquiry_id", q.InquiryID))

	if len(items) > 0 {
		parts := make([]inquiries.Part, len(items))
		for i, it := range items {
			parts[i] = it.AsPart()
		}
		s.syncInquiry(ctx, q.InquiryID, inquiries.StatusQuoted, func() error {
			return s.inquiries.MarkQuoted(ctx, q.InquiryID, parts)
		})
	} else {
		s.syncInquiry(ctx, q.InquiryID, inquiries.StatusQuoted, nil)
	}
	return q, nil
}

// Get loads a quotation visible to actor.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && q.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: quotation %s", shared.ErrNotFound, id)
	}
	return q, nil
}

// Load fetches a quotation without an access check.
func (s *Service) Load(ctx context.Context, id string) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of quotations. Customers only see their own.
func (s *Service) List(ctx context.Context, actor auth.Principal, filter ListFilter) ([]Quotation, shared.Pagination, error) {
	if !actor.IsStaff() {
		filter.CustomerID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown quotation status %q", filter.Status)
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Send marks the quotation as sent to the customer.
func (s *Service) Send(ctx context.Context, id string) (*Quotation, error) {
	return s.apply(ctx, id, func(q *Quotation, now time.Time) error {
		return markSent(q, now)
	})
}

// Accept records the customer's acceptance. Staff may accept on the
// customer's behalf.
func (s *Service) Accept(ctx context.Context, actor auth.Principal, id string) (*Quotation, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	q, err := s.apply(ctx, id, func(q *Quotation, now time.Time) error {
		return markAccepted(q, now)
	})
	if err != nil {
		return nil, err
	}
	s.syncInquiry(ctx, q.InquiryID, inquiries.StatusAccepted, nil)
	return q, nil
}

// Reject records a rejection with its reason.
func (s *Service) Reject(ctx context.Context, actor auth.Principal, id, reason string) (*Quotation, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	q, err := s.apply(ctx, id, func(q *Quotation, now time.Time) error {
		return markRejected(q, reason, now)
	})
	if err != nil {
		return nil, err
	}
	s.syncInquiry(ctx, q.InquiryID, inquiries.StatusRejected, nil)
	return q, nil
}

// ClaimForOrder marks an accepted quotation as consumed by orderID. A
// quotation can be claimed once; any later claim reports a conflict.
func (s *Service) ClaimForOrder(ctx context.Context, id, orderID string) error {
	ok, err := s.repo.Claim(ctx, id, orderID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: quotation %s is no longer accepted", shared.ErrConcurrencyConflict, id)
	}
	return nil
}

// ReleaseClaim hands a claimed quotation back when the order was not stored.
func (s *Service) ReleaseClaim(ctx context.Context, id, orderID string) error {
	ok, err := s.repo.Release(ctx, id, orderID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: quotation %s is not claimed by order %s", shared.ErrConcurrencyConflict, id, orderID)
	}
	s.logger.Warn("quotation claim released", slog.String("quotation_id", id), slog.String("order_id", orderID))
	return nil
}

// Upload is a document received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachDocument stores a PDF and records its locator.
func (s *Service) AttachDocument(ctx context.Context, id string, up Upload) (*Quotation, error) {
	if up.Size > MaxDocumentSize {
		return nil, shared.Validationf("document %s exceeds %d bytes", up.Name, MaxDocumentSize)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.IsPreparing() {
		return nil, invalid(q, "attach a document to")
	}
	if up.ContentType == "" {
		up.ContentType = "application/pdf"
	}
	key := blob.NewKey("quotations/"+q.ID, up.Name)
	locator, err := s.blobs.Store(ctx, key, up.Body, blob.Meta{Name: up.Name, ContentType: up.ContentType, Size: up.Size})
	if err != nil {
		return nil, err
	}
	doc := Document{Locator: locator, Name: up.Name, Size: up.Size, ContentType: up.ContentType, StoredAt: s.now()}
	return s.apply(ctx, id, func(q *Quotation, now time.Time) error {
		return attachDocument(q, doc, now)
	})
}

// RenderDocument lays out the quotation, renders it to PDF and attaches it.
func (s *Service) RenderDocument(ctx context.Context, id string) (*Quotation, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: document renderer not configured", shared.ErrDependency)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.IsPreparing() {
		return nil, invalid(q, "render a document for")
	}
	html, err := renderHTML(q)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("%w: render quotation pdf: %v", shared.ErrDependency, err)
	}
	return s.AttachDocument(ctx, id, Upload{
		Name:        q.QuotationNumber + ".pdf",
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
		Body:        bytes.NewReader(pdf),
	})
}

// OpenDocument streams the stored PDF for a quotation visible to actor.
func (s *Service) OpenDocument(ctx context.Context, actor auth.Principal, id string) (io.ReadCloser, *Document, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if q.Document == nil {
		return nil, nil, fmt.Errorf("%w: quotation %s has no document", shared.ErrNotFound, q.QuotationNumber)
	}
	rc, _, err := s.blobs.Retrieve(ctx, q.Document.Locator)
	if err != nil {
		return nil, nil, err
	}
	return rc, q.Document, nil
}

// apply loads, mutates and conditionally writes a quotation.
func (s *Service) apply(ctx context.Context, id string, mutate func(*Quotation, time.Time) error) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := q.Status
	if err := mutate(q, s.now()); err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdateIf(ctx, q, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: quotation %s changed concurrently", shared.ErrConcurrencyConflict, q.QuotationNumber)
	}
	s.logger.Info("quotation status changed",
		slog.String("quotation_id", q.ID),
		slog.String("from", string(expected)),
		slog.String("to", string(q.Status)))
	return q, nil
}

// syncInquiry keeps the inquiry in step with the quotation. Failures are
// logged and never fail the quotation operation.
func (s *Service) syncInquiry(ctx context.Context, inquiryID string, to inquiries.Status, custom func() error) {
	var err error
	if custom != nil {
		err = custom()
	} else {
		err = s.inquiries.SyncStatus(ctx, inquiryID, to)
	}
	if err != nil {
		s.logger.Warn("inquiry status sync failed",
			slog.String("inquiry_id", inquiryID),
			slog.String("status", string(to)),
			slog.Any("error", err))
	}
}

// priceItems fills missing line totals from unit price and quantity.
func priceItems(in []Item) []Item {
	out := make([]Item, len(in))
	for i, it := range in {
		it.Material = strings.TrimSpace(it.Material)
		if it.TotalPrice == 0 && it.UnitPrice > 0 {
			it.TotalPrice = decimal.NewFromFloat(it.UnitPrice).
				Mul(decimal.NewFromInt(int64(it.Quantity))).
				Round(2).InexactFloat64()
		}
		out[i] = it
	}
	return out
}
