package application

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory application store for demo/development.
type MemoryStore struct {
	mu          sync.RWMutex
	apps        map[string]*Application // by ID
	externalIDs map[string]string       // external ID → ID
}

// NewMemoryStore creates a new in-memory application store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:        make(map[string]*Application),
		externalIDs: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, a *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.externalIDs[a.ExternalID]; exists {
		return ErrExternalIDUsed
	}

	cp := *a
	m.apps[a.ID] = &cp
	m.externalIDs[a.ExternalID] = a.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.apps[id]
	if !ok {
		return nil, ErrAppNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetByExternalID(_ context.Context, externalID string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.externalIDs[externalID]
	if !ok {
		return nil, ErrAppNotFound
	}
	cp := *m.apps[id]
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, a *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.apps[a.ID]; !ok {
		return ErrAppNotFound
	}
	cp := *a
	m.apps[a.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Application, 0, len(m.apps))
	for _, a := range m.apps {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
