package reconcile

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory webhook event store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*WebhookEvent // by ID
	byKey  map[string]string        // provider|eventID → ID
}

// NewMemoryStore creates a new in-memory webhook event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]*WebhookEvent),
		byKey:  make(map[string]string),
	}
}

func eventKey(provider, eventID string) string {
	return provider + "|" + eventID
}

func (m *MemoryStore) Create(_ context.Context, e *WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.events[e.ID] = &cp
	m.byKey[eventKey(e.Provider, e.EventID)] = e.ID
	return nil
}

func (m *MemoryStore) GetByProviderEventID(_ context.Context, provider, eventID string) (*WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[eventKey(provider, eventID)]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *m.events[id]
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, e *WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[e.ID]; !ok {
		return ErrEventNotFound
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
