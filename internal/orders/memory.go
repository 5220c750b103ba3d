package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fabline/fabline/internal/shared"
)

// MemoryRepository keeps orders in process.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string]Order
	// FailCreate makes Create return it.
	FailCreate error
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]Order)}
}

// Create implements Repository.
func (m *MemoryRepository) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return m.FailCreate
	}
	for _, existing := range m.data {
		if existing.QuotationID == o.QuotationID {
			return fmt.Errorf("%w: quotation %s already has an order", shared.ErrConcurrencyConflict, o.QuotationID)
		}
	}
	m.data[o.ID] = o.Clone()
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", shared.ErrNotFound, id)
	}
	out := o.Clone()
	return &out, nil
}

// List implements Repository.
func (m *MemoryRepository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Order
	for _, o := range m.data {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	start := min(shared.Offset(page, perPage), len(matched))
	end := min(start+perPage, len(matched))
	return matched[start:end], len(matched), nil
}

// UpdateIf implements Repository.
func (m *MemoryRepository) UpdateIf(ctx context.Context, o *Order, expected Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.data[o.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	m.data[o.ID] = o.Clone()
	return true, nil
}
