package quotations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

type counterNumbers struct {
	mu sync.Mutex
	n  int
}

func (c *counterNumbers) GenerateOrFallback(_ context.Context, entity sequence.Entity) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("%s-%04d", sequence.DefaultSettings(entity).Prefix, c.n)
}

type stubRenderer struct {
	html string
	err  error
}

func (s *stubRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7 stub"), nil
}

var (
	owner    = auth.Principal{UserID: "cust-1", Role: users.RoleCustomer}
	stranger = auth.Principal{UserID: "cust-9", Role: users.RoleCustomer}
	staff    = auth.Principal{UserID: "staff-1", Role: users.RoleAdmin}
)

type fixture struct {
	svc       *Service
	repo      *MemoryRepository
	inquiries *inquiries.Service
	renderer  *stubRenderer
	inquiry   *inquiries.Inquiry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	numbers := &counterNumbers{}
	inqSvc := inquiries.NewService(inquiries.NewMemoryRepository(), numbers, store, nil)
	inq, err := inqSvc.Create(context.Background(), owner, inquiries.CreateRequest{
		Parts:           []inquiries.Part{{Material: "Steel", Thickness: "2mm", Quantity: 10}},
		DeliveryAddress: "Plot 7, MIDC",
	})
	require.NoError(t, err)

	directory := users.NewService(users.NewMemoryRepository(users.User{
		ID: owner.UserID, Name: "Rina", Company: "Rina Fab", Email: "rina@example.com", Phone: "+6281", Role: users.RoleCustomer, Active: true,
	}))
	repo := NewMemoryRepository()
	renderer := &stubRenderer{}
	svc := NewService(Deps{
		Repo:      repo,
		Numbers:   numbers,
		Inquiries: inqSvc,
		Customers: directory,
		Blobs:     store,
		Renderer:  renderer,
	})
	return &fixture{svc: svc, repo: repo, inquiries: inqSvc, renderer: renderer, inquiry: inq}
}

func (f *fixture) create(t *testing.T) *Quotation {
	t.Helper()
	q, err := f.svc.Create(context.Background(), CreateRequest{
		InquiryID: f.inquiry.ID,
		Items:     []Item{{Material: "Steel", Thickness: "2mm", Quantity: 10, UnitPrice: 50}},
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) inquiryStatus(t *testing.T) inquiries.Status {
	t.Helper()
	inq, err := f.inquiries.Load(context.Background(), f.inquiry.ID)
	require.NoError(t, err)
	return inq.Status
}

func TestCreateSnapshotsCustomerAndPricesItems(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	assert.Equal(t, StatusDraft, q.Status)
	assert.Equal(t, "Rina Fab", q.CustomerInfo.Company)
	assert.InDelta(t, 500.0, q.Items[0].TotalPrice, 0.001)
	assert.InDelta(t, 500.0, q.TotalAmount, 0.001)
	assert.Equal(t, DefaultCurrency, q.Currency)
	assert.Equal(t, inquiries.StatusQuoted, f.inquiryStatus(t))

	inq, err := f.inquiries.Load(context.Background(), f.inquiry.ID)
	require.NoError(t, err)
	require.NotNil(t, inq.Parts[0].UnitPrice)
	assert.InDelta(t, 50.0, *inq.Parts[0].UnitPrice, 0.001)
}

func TestCreateRejectsSecondQuotationForInquiry(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.svc.Create(context.Background(), CreateRequest{InquiryID: f.inquiry.ID, TotalAmount: 10})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestCreateRequiresAmount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateRequest{InquiryID: f.inquiry.ID})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(context.Background(), CreateRequest{InquiryID: "missing", TotalAmount: 10})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSendAcceptFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	_, err := f.svc.Accept(ctx, owner, q.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition, "draft cannot be accepted")

	sent, err := f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	assert.NotNil(t, sent.SentAt)

	_, err = f.svc.Send(ctx, q.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.Accept(ctx, stranger, q.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	accepted, err := f.svc.Accept(ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.NotNil(t, accepted.AcceptedAt)
	assert.Equal(t, inquiries.StatusAccepted, f.inquiryStatus(t))

	_, err = f.svc.Reject(ctx, owner, q.ID, "too late")
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestRejectNeedsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	_, err := f.svc.Reject(ctx, staff, q.ID, "  ")
	assert.ErrorIs(t, err, shared.ErrValidation)

	rejected, err := f.svc.Reject(ctx, staff, q.ID, "price too high")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "price too high", rejected.RejectionReason)
	assert.Equal(t, inquiries.StatusRejected, f.inquiryStatus(t))
}

func TestClaimForOrderIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)
	_, err := f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, owner, q.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.ClaimForOrder(ctx, q.ID, fmt.Sprintf("order-%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	}
	assert.Equal(t, 1, wins)

	stored, err := f.repo.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOrderCreated, stored.Status)
	assert.NotNil(t, stored.OrderCreatedAt)
}

func TestReleaseClaimRestoresAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)
	_, err := f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, owner, q.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.ClaimForOrder(ctx, q.ID, "order-1"))

	assert.ErrorIs(t, f.svc.ReleaseClaim(ctx, q.ID, "order-2"), shared.ErrConcurrencyConflict)
	require.NoError(t, f.svc.ReleaseClaim(ctx, q.ID, "order-1"))

	stored, err := f.repo.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, stored.Status)
	assert.Empty(t, stored.OrderID)
}

func TestRenderDocumentStoresPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	updated, err := f.svc.RenderDocument(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, updated.Status)
	require.NotNil(t, updated.Document)
	assert.Equal(t, q.QuotationNumber+".pdf", updated.Document.Name)
	assert.Contains(t, f.renderer.html, "Rina Fab")
	assert.Contains(t, f.renderer.html, "500.00")

	rc, doc, err := f.svc.OpenDocument(ctx, owner, q.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 stub", string(body))
	assert.Equal(t, "application/pdf", doc.ContentType)

	sent, err := f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)

	_, err = f.svc.AttachDocument(ctx, q.ID, Upload{Name: "late.pdf", Body: strings.NewReader("x"), Size: 1})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestRenderFailureIsDependencyError(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.renderer.err = errors.New("gotenberg down")
	_, err := f.svc.RenderDocument(context.Background(), q.ID)
	assert.ErrorIs(t, err, shared.ErrDependency)
}

func TestLifecycleHelpersAreMonotonic(t *testing.T) {
	q := &Quotation{Status: StatusCreated}
	now := q.CreatedAt
	require.NoError(t, markSent(q, now))
	require.NoError(t, markAccepted(q, now))
	assert.ErrorIs(t, markSent(q, now), shared.ErrInvalidTransition)
	assert.ErrorIs(t, attachDocument(q, Document{}, now), shared.ErrInvalidTransition)

	done := &Quotation{Status: StatusOrderCreated}
	assert.ErrorIs(t, markRejected(done, "no", now), shared.ErrInvalidTransition)
	assert.ErrorIs(t, markAccepted(done, now), shared.ErrInvalidTransition)
}
