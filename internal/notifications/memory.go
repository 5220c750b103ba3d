package notifications

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/fabline/fabline/internal/shared"
)

// MemoryRepository keeps notifications in process.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string]Notification
	// FailCreate makes Create return it.
	FailCreate error
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]Notification)}
}

// Create implements Repository.
func (m *MemoryRepository) Create(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return m.FailCreate
	}
	cp := *n
	cp.Metadata = maps.Clone(n.Metadata)
	m.data[n.ID] = cp
	return nil
}

// ListForUser implements Repository.
func (m *MemoryRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	out := m.forUser(userID)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored notification for userID.
func (m *MemoryRepository) All(userID string) []Notification {
	return m.forUser(userID)
}

func (m *MemoryRepository) forUser(userID string) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.data {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead implements Repository.
func (m *MemoryRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.data[id]
	if !ok || n.UserID != userID {
		return nil, fmt.Errorf("%w: notification %s", shared.ErrNotFound, id)
	}
	n.Read = true
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	m.data[id] = n
	return &n, nil
}

// MarkAllRead implements Repository.
func (m *MemoryRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, n := range m.data {
		if n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &at
		m.data[id] = n
		count++
	}
	return count, nil
}

// UnreadCount implements Repository.
func (m *MemoryRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range m.forUser(userID) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
