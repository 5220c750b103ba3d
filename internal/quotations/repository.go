package quotations

import (
	"context"
	"time"
)

// Repository persists quotations. Writes that change status are conditional
// on the status the caller loaded.
type Repository interface {
	Create(ctx context.Context, q *Quotation) error
	Get(ctx context.Context, id string) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	// UpdateIf writes q only while the stored status still equals expected.
	UpdateIf(ctx context.Context, q *Quotation, expected Status) (bool, error)
	// Claim moves an accepted quotation to order_created for orderID.
	Claim(ctx context.Context, id, orderID string, at time.Time) (bool, error)
	// Release reverts a claim held by orderID.
	Release(ctx context.Context, id, orderID string, at time.Time) (bool, error)
}
