package users

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fabline/fabline/internal/shared"
)

// MemoryRepository keeps users in process. It backs tests and the
// seeded demo directory used by the CLI.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository seeds a repository with users.
func NewMemoryRepository(seed ...User) *MemoryRepository {
	m := &MemoryRepository{users: make(map[string]User, len(seed))}
	for _, u := range seed {
		m.users[u.ID] = u
	}
	return m
}

// Put inserts or replaces a user.
func (m *MemoryRepository) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// Get implements RepositoryPort.
func (m *MemoryRepository) Get(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	return &u, nil
}

// FindByEmail implements RepositoryPort.
func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
}

// ListByRoles implements RepositoryPort.
func (m *MemoryRepository) ListByRoles(ctx context.Context, roles []Role) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []User
	for _, u := range m.users {
		if u.Active && want[u.Role] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
