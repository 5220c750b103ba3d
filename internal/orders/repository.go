package orders

import "context"

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	// UpdateIf writes o only while the stored status still equals expected.
	UpdateIf(ctx context.Context, o *Order, expected Status) (bool, error)
}
