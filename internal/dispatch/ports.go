package dispatch

import (
	"context"

	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/notifications"
	"github.com/fabline/fabline/internal/orders"
	"github.com/fabline/fabline/internal/quotations"
	"github.com/fabline/fabline/internal/users"
	"github.com/fabline/fabline/jobs"
)

// InquiryLoader reads inquiries without access checks.
type InquiryLoader interface {
	Load(ctx context.Context, id string) (*inquiries.Inquiry, error)
}

// QuotationLoader reads quotations without access checks.
type QuotationLoader interface {
	Load(ctx context.Context, id string) (*quotations.Quotation, error)
}

// OrderStore reads orders and records gateway refunds.
type OrderStore interface {
	Load(ctx context.Context, id string) (*orders.Order, error)
	RecordRefund(ctx context.Context, id, refundID string) error
}

// Directory resolves user contact details.
type Directory interface {
	Get(ctx context.Context, id string) (*users.User, error)
	ListByRoles(ctx context.Context, roles ...users.Role) ([]users.User, error)
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, m jobs.Mail) error
}

// SMSSender delivers text messages.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// Pusher delivers realtime events to connected clients.
type Pusher interface {
	SendToUser(ctx context.Context, userID, event string, data any) error
	SendToRole(ctx context.Context, role users.Role, event string, data any) error
}

// NotificationWriter stores inbox records.
type NotificationWriter interface {
	Create(ctx context.Context, in notifications.CreateInput) (*notifications.Notification, error)
}

// Refunder reverses a captured gateway payment.
type Refunder interface {
	Refund(ctx context.Context, paymentID string, amount *float64) (string, error)
}
