package license

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory license store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	licenses map[string]*License // by ID
	jtis     map[string]string   // JTI → ID
}

// NewMemoryStore creates a new in-memory license store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		licenses: make(map[string]*License),
		jtis:     make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, l *License) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneLicense(l)
	m.licenses[l.ID] = cp
	m.jtis[l.JTI] = l.ID
	return nil
}

func (m *MemoryStore) GetByJTI(_ context.Context, jti string) (*License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.jtis[jti]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	return cloneLicense(m.licenses[id]), nil
}

func (m *MemoryStore) Update(_ context.Context, l *License) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.licenses[l.ID]; !ok {
		return ErrLicenseNotFound
	}
	m.licenses[l.ID] = cloneLicense(l)
	return nil
}

func (m *MemoryStore) ListActiveBySubscription(_ context.Context, subscriptionID string) ([]*License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*License
	for _, l := range m.licenses {
		if l.SubscriptionID == subscriptionID && l.Status == StatusActive {
			out = append(out, cloneLicense(l))
		}
	}
	return out, nil
}

// Snapshot captures the full store state for unit-of-work rollback.
func (m *MemoryStore) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	licenses := make(map[string]*License, len(m.licenses))
	for id, l := range m.licenses {
		licenses[id] = cloneLicense(l)
	}
	jtis := make(map[string]string, len(m.jtis))
	for k, v := range m.jtis {
		jtis[k] = v
	}
	return [2]any{licenses, jtis}
}

// Restore replaces the store state with a previous snapshot.
func (m *MemoryStore) Restore(snapshot any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := snapshot.([2]any)
	m.licenses = parts[0].(map[string]*License)
	m.jtis = parts[1].(map[string]string)
}

func cloneLicense(l *License) *License {
	cp := *l
	cp.Entitlements = l.Entitlements.Clone()
	return &cp
}

var _ Store = (*MemoryStore)(nil)
