package inquiries

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

type fixedNumbers struct{ n int }

func (f *fixedNumbers) GenerateOrFallback(_ context.Context, entity sequence.Entity) string {
	f.n++
	return fmt.Sprintf("INQ-%04d", f.n)
}

var (
	customer = auth.Principal{UserID: "cust-1", Role: users.RoleCustomer}
	stranger = auth.Principal{UserID: "cust-2", Role: users.RoleCustomer}
	staff    = auth.Principal{UserID: "staff-1", Role: users.RoleBackoffice}
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repo := NewMemoryRepository()
	return NewService(repo, &fixedNumbers{}, store, nil), repo
}

func sampleRequest() CreateRequest {
	return CreateRequest{
		Parts:           []Part{{Material: "SS304", Thickness: "2mm", Quantity: 10}},
		DeliveryAddress: "Jl. Industri 4, Bekasi",
	}
}

func TestCreateAssignsNumberAndOwner(t *testing.T) {
	svc, _ := newTestService(t)
	inq, err := svc.Create(context.Background(), customer, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "INQ-0001", inq.InquiryNumber)
	assert.Equal(t, customer.UserID, inq.CustomerID)
	assert.Equal(t, StatusPending, inq.Status)
	assert.Equal(t, 10, inq.TotalQuantity())
}

func TestCreateDropsClientPrices(t *testing.T) {
	svc, _ := newTestService(t)
	price := 99.0
	req := sampleRequest()
	req.Parts[0].UnitPrice = &price
	inq, err := svc.Create(context.Background(), customer, req)
	require.NoError(t, err)
	assert.Nil(t, inq.Parts[0].UnitPrice)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), customer, CreateRequest{DeliveryAddress: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), staff, sampleRequest())
	assert.ErrorIs(t, err, shared.ErrValidation, "staff must name the customer")

	req := sampleRequest()
	req.CustomerID = customer.UserID
	inq, err := svc.Create(context.Background(), staff, req)
	require.NoError(t, err)
	assert.Equal(t, customer.UserID, inq.CustomerID)
}

func TestCustomersOnlySeeTheirOwn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	inq, err := svc.Create(ctx, customer, sampleRequest())
	require.NoError(t, err)

	_, err = svc.Get(ctx, stranger, inq.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	items, page, err := svc.List(ctx, stranger, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, page.Total)

	items, _, err = svc.List(ctx, staff, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUpdateByCustomerRespectsStatus(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	inq, err := svc.Create(ctx, customer, sampleRequest())
	require.NoError(t, err)

	addr := "Jl. Baru 1"
	updated, err := svc.UpdateByCustomer(ctx, customer, inq.ID, UpdateRequest{DeliveryAddress: &addr})
	require.NoError(t, err)
	assert.Equal(t, addr, updated.DeliveryAddress)

	_, err = svc.UpdateByCustomer(ctx, stranger, inq.ID, UpdateRequest{DeliveryAddress: &addr})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.SyncStatus(ctx, inq.ID, StatusAccepted))
	_, err = svc.UpdateByCustomer(ctx, customer, inq.ID, UpdateRequest{DeliveryAddress: &addr})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.UpdateParts(ctx, inq.ID, UpdatePartsRequest{Parts: []Part{{Material: "AL", Quantity: 1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	stored, err := repo.Get(ctx, inq.ID)
	require.NoError(t, err)
	assert.Equal(t, "SS304", stored.Parts[0].Material)
}

func TestSyncStatusNeverMovesBackwards(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	inq, err := svc.Create(ctx, customer, sampleRequest())
	require.NoError(t, err)

	reviewed, err := svc.MarkReviewed(ctx, inq.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, reviewed.Status)

	require.NoError(t, svc.SyncStatus(ctx, inq.ID, StatusQuoted))
	require.NoError(t, svc.SyncStatus(ctx, inq.ID, StatusReviewed))

	stored, err := repo.Get(ctx, inq.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, stored.Status)

	assert.ErrorIs(t, svc.SyncStatus(ctx, inq.ID, StatusPending), shared.ErrValidation)
}

func TestMarkQuotedCopiesPrices(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	inq, err := svc.Create(ctx, customer, sampleRequest())
	require.NoError(t, err)

	unit, total := 12.5, 125.0
	require.NoError(t, svc.MarkQuoted(ctx, inq.ID, []Part{{Material: "SS304", Quantity: 10, UnitPrice: &unit, TotalPrice: &total}}))

	stored, err := repo.Get(ctx, inq.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, stored.Status)
	require.NotNil(t, stored.Parts[0].TotalPrice)
	assert.InDelta(t, 125.0, *stored.Parts[0].TotalPrice, 0.001)
}

func TestAttachFileStoresLocator(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	inq, err := svc.Create(ctx, customer, sampleRequest())
	require.NoError(t, err)

	updated, err := svc.AttachFile(ctx, customer, inq.ID, Upload{
		Name:        "bracket.dxf",
		ContentType: "application/dxf",
		Size:        11,
		Body:        strings.NewReader("0\nSECTION\n"),
	})
	require.NoError(t, err)
	require.Len(t, updated.Files, 1)
	assert.True(t, strings.HasPrefix(updated.Files[0].Locator, "local:"))

	rc, meta, err := svc.blobs.Retrieve(ctx, updated.Files[0].Locator)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "0\nSECTION\n", string(body))
	assert.Equal(t, "bracket.dxf", meta.Name)

	_, err = svc.AttachFile(ctx, stranger, inq.ID, Upload{Name: "x", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRepositoryFailureSurfaces(t *testing.T) {
	svc, repo := newTestService(t)
	repo.FailNext = shared.Persistence("insert inquiry", errors.New("connection reset"))
	_, err := svc.Create(context.Background(), customer, sampleRequest())
	assert.ErrorIs(t, err, shared.ErrPersistence)
}
