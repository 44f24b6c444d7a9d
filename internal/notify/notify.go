// Package notify delivers subscription lifecycle events to endpoints
// registered by applications. Deliveries are signed with the
// endpoint's secret so receivers can verify origin.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEndpointNotFound is returned for unknown endpoint ids.
var ErrEndpointNotFound = errors.New("notify: endpoint not found")

// Endpoint is a registered outbound webhook destination.
type Endpoint struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	URL           string `json:"url"`
	Secret        string `json:"-"` // HMAC signing key
	// EventTypes filters deliveries; empty means all events.
	EventTypes  []string   `json:"eventTypes"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// wants reports whether the endpoint subscribes to eventType.
func (e *Endpoint) wants(eventType string) bool {
	if len(e.EventTypes) == 0 {
		return true
	}
	for _, et := range e.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// Store persists notification endpoints.
type Store interface {
	Create(ctx context.Context, e *Endpoint) error
	Get(ctx context.Context, id string) (*Endpoint, error)
	ListByApplication(ctx context.Context, applicationID string) ([]*Endpoint, error)
	Update(ctx context.Context, e *Endpoint) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory endpoint store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewMemoryStore creates an in-memory endpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{endpoints: make(map[string]*Endpoint)}
}

func (m *MemoryStore) Create(ctx context.Context, e *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.endpoints[e.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endpoints[id]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) ListByApplication(ctx context.Context, applicationID string) ([]*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Endpoint
	for _, e := range m.endpoints {
		if e.ApplicationID == applicationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, e *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[e.ID]; !ok {
		return ErrEndpointNotFound
	}
	cp := *e
	m.endpoints[e.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[id]; !ok {
		return ErrEndpointNotFound
	}
	delete(m.endpoints, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
