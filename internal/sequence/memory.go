package sequence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fabline/fabline/internal/shared"
)

// MemoryRepository keeps counters in process.
type MemoryRepository struct {
	mu       sync.Mutex
	counters map[Entity]Counter
	// FailNext makes every Next call return it.
	FailNext error
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{counters: make(map[Entity]Counter)}
}

// Next implements Repository.
func (m *MemoryRepository) Next(ctx context.Context, entity Entity, d Settings) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		return Counter{}, m.FailNext
	}
	c, ok := m.counters[entity]
	if !ok {
		c = Counter{Entity: entity, Prefix: d.Prefix, Separator: d.Separator, YearSuffix: d.YearSuffix, StartNumber: d.StartNumber, Current: d.StartNumber}
	} else {
		c.Current++
	}
	c.UpdatedAt = time.Now().UTC()
	m.counters[entity] = c
	return c, nil
}

// Configure implements Repository. Current never decreases.
func (m *MemoryRepository) Configure(ctx context.Context, entity Entity, s Settings) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[entity]
	if !ok {
		c = Counter{Entity: entity, Current: s.StartNumber - 1}
	}
	c.Prefix, c.Separator, c.YearSuffix, c.StartNumber = s.Prefix, s.Separator, s.YearSuffix, s.StartNumber
	if s.StartNumber-1 > c.Current {
		c.Current = s.StartNumber - 1
	}
	c.UpdatedAt = time.Now().UTC()
	m.counters[entity] = c
	return c, nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(ctx context.Context, entity Entity) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[entity]
	if !ok {
		return Counter{}, fmt.Errorf("%w: counter %s", shared.ErrNotFound, entity)
	}
	return c, nil
}

// List implements Repository.
func (m *MemoryRepository) List(ctx context.Context) ([]Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Counter, 0, len(m.counters))
	for _, c := range m.counters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out, nil
}
