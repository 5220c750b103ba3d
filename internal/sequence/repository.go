package sequence

import "context"

// Repository persists counters. Next must increment and read in one
// atomic store operation.
type Repository interface {
	Next(ctx context.Context, entity Entity, defaults Settings) (Counter, error)
	Configure(ctx context.Context, entity Entity, settings Settings) (Counter, error)
	Get(ctx context.Context, entity Entity) (Counter, error)
	List(ctx context.Context) ([]Counter, error)
}
