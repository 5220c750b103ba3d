package inquiries

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/shared"
)

// MaxFileSize bounds a single uploaded drawing.
const MaxFileSize = 25 << 20

// NumberGenerator issues inquiry numbers.
type NumberGenerator interface {
	GenerateOrFallback(ctx context.Context, entity sequence.Entity) string
}

// Service orchestrates inquiry use cases.
type Service struct {
	repo      Repository
	numbers   NumberGenerator
	blobs     blob.Store
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, numbers NumberGenerator, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		numbers:   numbers,
		blobs:     blobs,
		logger:    logger,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new pending inquiry. Customers always create for
// themselves; staff must name the customer.
func (s *Service) Create(ctx context.Context, actor auth.Principal, req CreateRequest) (*Inquiry, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return nil, err
	}
	customerID := actor.UserID
	if actor.IsStaff() {
		customerID = strings.TrimSpace(req.CustomerID)
		if customerID == "" {
			return nil, shared.Validationf("customerId is required when staff submit an inquiry")
		}
	}
	now := s.now()
	inq := &Inquiry{
		ID:                  uuid.NewString(),
		InquiryNumber:       s.numbers.GenerateOrFallback(ctx, sequence.EntityInquiry),
		CustomerID:          customerID,
		Parts:               stripPrices(req.Parts),
		Files:               []File{},
		DeliveryAddress:     strings.TrimSpace(req.DeliveryAddress),
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, inq); err != nil {
		return nil, err
	}
	s.logger.Info("inquiry created",
		slog.String("inquiry_id", inq.ID),
		slog.String("inquiry_number", inq.InquiryNumber),
		slog.String("customer_id", customerID))
	return inq, nil
}

// Get loads an inquiry visible to actor. Other customers' inquiries read as
// missing.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Inquiry, error) {
	inq, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && inq.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: inquiry %s", shared.ErrNotFound, id)
	}
	return inq, nil
}

// Load fetches an inquiry without an access check, for internal callers.
func (s *Service) Load(ctx context.Context, id string) (*Inquiry, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of inquiries. Customers only see their own.
func (s *Service) List(ctx context.Context, actor auth.Principal, filter ListFilter) ([]Inquiry, shared.Pagination, error) {
	if !actor.IsStaff() {
		filter.CustomerID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown inquiry status %q", filter.Status)
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// UpdateByCustomer applies the owner's edits while the inquiry is still open.
func (s *Service) UpdateByCustomer(ctx context.Context, actor auth.Principal, id string, req UpdateRequest) (*Inquiry, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return nil, err
	}
	inq, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inq.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: inquiry %s", shared.ErrNotFound, id)
	}
	if !inq.Status.CanCustomerEdit() {
		return nil, fmt.Errorf("%w: inquiry %s is %s", shared.ErrInvalidTransition, inq.InquiryNumber, inq.Status)
	}
	if req.Parts != nil {
		inq.Parts = stripPrices(*req.Parts)
	}
	if req.DeliveryAddress != nil {
		inq.DeliveryAddress = strings.TrimSpace(*req.DeliveryAddress)
	}
	if req.SpecialInstructions != nil {
		inq.SpecialInstructions = strings.TrimSpace(*req.SpecialInstructions)
	}
	inq.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, inq); err != nil {
		return nil, err
	}
	return inq, nil
}

// UpdateParts replaces the part list on behalf of back office.
func (s *Service) UpdateParts(ctx context.Context, id string, req UpdatePartsRequest) (*Inquiry, error) {
	if err := shared.Validate(s.validator, req); err != nil {
		return nil, err
	}
	inq, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inq.Status.CanStaffEditParts() {
		return nil, fmt.Errorf("%w: inquiry %s is %s", shared.ErrInvalidTransition, inq.InquiryNumber, inq.Status)
	}
	inq.Parts = req.Parts
	inq.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, inq); err != nil {
		return nil, err
	}
	return inq, nil
}

// MarkReviewed moves a pending inquiry to reviewed. Reviewing an inquiry
// that has already moved on is a no-op.
func (s *Service) MarkReviewed(ctx context.Context, id string) (*Inquiry, error) {
	inq, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inq.Status != StatusPending {
		return inq, nil
	}
	if err := s.SyncStatus(ctx, id, StatusReviewed); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// SyncStatus follows a quotation's progress. Moves that would go backwards
// are ignored.
func (s *Service) SyncStatus(ctx context.Context, id string, to Status) error {
	from, ok := syncSources[to]
	if !ok {
		return shared.Validationf("inquiry status %q cannot be synced", to)
	}
	changed, err := s.repo.UpdateStatus(ctx, id, from, to, s.now())
	if err != nil {
		return err
	}
	if changed {
		s.logger.Info("inquiry status synced", slog.String("inquiry_id", id), slog.String("status", string(to)))
	}
	return nil
}

// MarkQuoted copies quoted prices onto the inquiry's parts and moves it to
// quoted. Priced parts are matched by position.
func (s *Service) MarkQuoted(ctx context.Context, id string, priced []Part) error {
	inq, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	for i := range inq.Parts {
		if i >= len(priced) {
			break
		}
		inq.Parts[i].UnitPrice = priced[i].UnitPrice
		inq.Parts[i].TotalPrice = priced[i].TotalPrice
	}
	if slices.Contains(syncSources[StatusQuoted], inq.Status) {
		inq.Status = StatusQuoted
	}
	inq.UpdatedAt = s.now()
	return s.repo.Update(ctx, inq)
}

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachFile stores an upload in the blob store and records its locator.
func (s *Service) AttachFile(ctx context.Context, actor auth.Principal, id string, up Upload) (*Inquiry, error) {
	inq, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if up.Size > MaxFileSize {
		return nil, shared.Validationf("file %s exceeds %d bytes", up.Name, MaxFileSize)
	}
	if !actor.IsStaff() && !inq.Status.CanCustomerEdit() {
		return nil, fmt.Errorf("%w: inquiry %s is %s", shared.ErrInvalidTransition, inq.InquiryNumber, inq.Status)
	}
	key := blob.NewKey("inquiries/"+inq.ID, up.Name)
	locator, err := s.blobs.Store(ctx, key, up.Body, blob.Meta{Name: up.Name, ContentType: up.ContentType, Size: up.Size})
	if err != nil {
		return nil, err
	}
	inq.Files = append(inq.Files, File{
		Name:        up.Name,
		Size:        up.Size,
		ContentType: up.ContentType,
		Locator:     locator,
		UploadedAt:  s.now(),
	})
	inq.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, inq); err != nil {
		return nil, err
	}
	return inq, nil
}

func stripPrices(parts []Part) []Part {
	out := make([]Part, len(parts))
	for i, p := range parts {
		p.Material = strings.TrimSpace(p.Material)
		p.UnitPrice = nil
		p.TotalPrice = nil
		out[i] = p
	}
	return out
}
