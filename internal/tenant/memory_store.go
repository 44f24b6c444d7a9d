package tenant

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory tenant store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant // by ID
	owners  map[string]string  // applicationID|ownerUserID → ID
}

// NewMemoryStore creates a new in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*Tenant),
		owners:  make(map[string]string),
	}
}

func ownerKey(applicationID, ownerUserID string) string {
	return applicationID + "|" + ownerUserID
}

func (m *MemoryStore) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerKey(t.ApplicationID, t.OwnerUserID)
	if _, exists := m.owners[key]; exists {
		return ErrTenantExists
	}

	cp := *t
	m.tenants[t.ID] = &cp
	m.owners[key] = t.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) GetByAppOwner(_ context.Context, applicationID, ownerUserID string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.owners[ownerKey(applicationID, ownerUserID)]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *m.tenants[id]
	return &cp, nil
}

func (m *MemoryStore) GetByAppEmail(_ context.Context, applicationID, ownerEmail string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tenants {
		if t.ApplicationID == applicationID && strings.EqualFold(t.OwnerEmail, ownerEmail) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (m *MemoryStore) Update(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[t.ID]; !ok {
		return ErrTenantNotFound
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

// Snapshot captures the full store state for unit-of-work rollback.
func (m *MemoryStore) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make(map[string]*Tenant, len(m.tenants))
	for id, t := range m.tenants {
		cp := *t
		tenants[id] = &cp
	}
	owners := make(map[string]string, len(m.owners))
	for k, v := range m.owners {
		owners[k] = v
	}
	return [2]any{tenants, owners}
}

// Restore replaces the store state with a previous snapshot.
func (m *MemoryStore) Restore(snapshot any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := snapshot.([2]any)
	m.tenants = parts[0].(map[string]*Tenant)
	m.owners = parts[1].(map[string]string)
}

var _ Store = (*MemoryStore)(nil)
