package inquiries

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fabline/fabline/internal/shared"
)

// MemoryRepository keeps inquiries in process for STORE_DRIVER=memory and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string]Inquiry
	// FailNext makes the next write return it, then resets.
	FailNext error
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]Inquiry)}
}

func (m *MemoryRepository) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// Create implements Repository.
func (m *MemoryRepository) Create(ctx context.Context, inq *Inquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.data[inq.ID] = cloneInquiry(*inq)
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(ctx context.Context, id string) (*Inquiry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inq, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: inquiry %s", shared.ErrNotFound, id)
	}
	out := cloneInquiry(inq)
	return &out, nil
}

// List implements Repository.
func (m *MemoryRepository) List(ctx context.Context, f ListFilter) ([]Inquiry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []Inquiry
	for _, inq := range m.data {
		if f.CustomerID != "" && inq.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && inq.Status != f.Status {
			continue
		}
		matched = append(matched, cloneInquiry(inq))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	start := min(shared.Offset(page, perPage), len(matched))
	end := min(start+perPage, len(matched))
	return matched[start:end], len(matched), nil
}

// Update implements Repository.
func (m *MemoryRepository) Update(ctx context.Context, inq *Inquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.data[inq.ID]; !ok {
		return fmt.Errorf("%w: inquiry %s", shared.ErrNotFound, inq.ID)
	}
	m.data[inq.ID] = cloneInquiry(*inq)
	return nil
}

// UpdateStatus implements Repository.
func (m *MemoryRepository) UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}
	inq, ok := m.data[id]
	if !ok || !slices.Contains(from, inq.Status) {
		return false, nil
	}
	inq.Status = to
	inq.UpdatedAt = at
	m.data[id] = inq
	return true, nil
}

func cloneInquiry(in Inquiry) Inquiry {
	out := in
	out.Parts = slices.Clone(in.Parts)
	out.Files = slices.Clone(in.Files)
	return out
}
