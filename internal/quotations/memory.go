package quotations

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fabline/fabline/internal/shared"
)

// MemoryRepository keeps quotations in process.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string]Quotation
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]Quotation)}
}

// Create implements Repository.
func (m *MemoryRepository) Create(ctx context.Context, q *Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data {
		if existing.InquiryID == q.InquiryID {
			return fmt.Errorf("%w: inquiry %s already has a quotation", shared.ErrConcurrencyConflict, q.InquiryID)
		}
	}
	m.data[q.ID] = clone(*q)
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(ctx context.Context, id string) (*Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: quotation %s", shared.ErrNotFound, id)
	}
	out := clone(q)
	return &out, nil
}

// List implements Repository.
func (m *MemoryRepository) List(ctx context.Context, f ListFilter) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Quotation
	for _, q := range m.data {
		if f.CustomerID != "" && q.CustomerID != f.CustomerID {
			continue
		}
		if f.InquiryID != "" && q.InquiryID != f.InquiryID {
			continue
		}
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		matched = append(matched, clone(q))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	start := min(shared.Offset(page, perPage), len(matched))
	end := min(start+perPage, len(matched))
	return matched[start:end], len(matched), nil
}

// UpdateIf implements Repository.
func (m *MemoryRepository) UpdateIf(ctx context.Context, q *Quotation, expected Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.data[q.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	next := clone(*q)
	next.OrderID = current.OrderID
	next.OrderCreatedAt = current.OrderCreatedAt
	m.data[q.ID] = next
	return true, nil
}

// Claim implements Repository.
func (m *MemoryRepository) Claim(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.data[id]
	if !ok || q.Status != StatusAccepted {
		return false, nil
	}
	q.Status = StatusOrderCreated
	q.OrderID = orderID
	q.OrderCreatedAt = &at
	q.UpdatedAt = at
	m.data[id] = q
	return true, nil
}

// Release implements Repository.
func (m *MemoryRepository) Release(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.data[id]
	if !ok || q.Status != StatusOrderCreated || q.OrderID != orderID {
		return false, nil
	}
	q.Status = StatusAccepted
	q.OrderID = ""
	q.OrderCreatedAt = nil
	q.UpdatedAt = at
	m.data[id] = q
	return true, nil
}

func clone(q Quotation) Quotation {
	out := q
	out.Items = slices.Clone(q.Items)
	if q.Document != nil {
		doc := *q.Document
		out.Document = &doc
	}
	return out
}
