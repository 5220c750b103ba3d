package notifications

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fabline/fabline/internal/shared"
)

// Service manages inbox records.
type Service struct {
	repo      Repository
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		logger:    logger,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a notification. An empty type defaults to info.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Type == "" {
		in.Type = TypeInfo
	}
	if !in.Type.IsValid() {
		return nil, shared.Validationf("unknown notification type %q", in.Type)
	}
	if err := shared.Validate(s.validator, in); err != nil {
		return nil, err
	}
	n := &Notification{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Title:         in.Title,
		Message:       in.Message,
		Type:          in.Type,
		RelatedEntity: in.RelatedEntity,
		Metadata:      in.Metadata,
		CreatedAt:     s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListForUser returns the newest notifications first. limit is clamped to
// 1..MaxLimit; zero or negative means DefaultLimit.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	items, err := s.repo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Notification{}
	}
	return items, nil
}

// MarkRead marks one of the user's notifications read. Another user's
// notification reads as missing.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (*Notification, error) {
	return s.repo.MarkRead(ctx, id, userID, s.now())
}

// MarkAllRead marks every unread notification of the user and returns how
// many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Debug("notifications marked read", slog.String("user_id", userID), slog.Int("count", n))
	return n, nil
}

// UnreadCount counts the user's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}
