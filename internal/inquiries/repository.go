package inquiries

import (
	"context"
	"time"
)

// Repository persists inquiries.
type Repository interface {
	Create(ctx context.Context, inq *Inquiry) error
	Get(ctx context.Context, id string) (*Inquiry, error)
	List(ctx context.Context, filter ListFilter) ([]Inquiry, int, error)
	// Update replaces parts, files, address, instructions and status.
	Update(ctx context.Context, inq *Inquiry) error
	// UpdateStatus moves id to `to` only when its current status is one of
	// from. It reports whether a record changed.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (bool, error)
}
