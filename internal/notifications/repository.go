package notifications

import (
	"context"
	"time"
)

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	// MarkRead sets read on id when owned by userID. It returns the stored
	// record; an already-read record keeps its readAt.
	MarkRead(ctx context.Context, id, userID string, at time.Time) (*Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}
