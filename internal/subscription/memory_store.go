package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory subscription store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription // by ID
}

// NewMemoryStore creates a new in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

func (m *MemoryStore) Create(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[s.ID] = cloneSub(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subs[id]
	if !ok {
		return nil, ErrSubNotFound
	}
	return cloneSub(s), nil
}

func (m *MemoryStore) GetCurrentByTenant(_ context.Context, tenantID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var current *Subscription
	for _, s := range m.subs {
		if s.TenantID != tenantID {
			continue
		}
		switch s.Status {
		case StatusTrialing, StatusActive, StatusPastDue:
			if current == nil || s.CreatedAt.After(current.CreatedAt) {
				current = s
			}
		}
	}
	if current == nil {
		return nil, ErrNoCurrentSub
	}
	return cloneSub(current), nil
}

func (m *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Subscription
	for _, s := range m.subs {
		if s.TenantID == tenantID {
			out = append(out, cloneSub(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetByProviderSubID(_ context.Context, providerSubID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subs {
		if s.ProviderSubscriptionID == providerSubID {
			return cloneSub(s), nil
		}
	}
	return nil, ErrSubNotFound
}

func (m *MemoryStore) Update(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.subs[s.ID]
	if !ok {
		return ErrSubNotFound
	}
	if existing.Version != s.Version {
		return ErrVersionConflict
	}

	cp := cloneSub(s)
	cp.Version++
	m.subs[s.ID] = cp
	s.Version = cp.Version
	return nil
}

func (m *MemoryStore) ListTrialingExpired(_ context.Context, cutoff time.Time, limit int) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Subscription
	for _, s := range m.subs {
		if s.Status == StatusTrialing && s.TrialEnd != nil && !s.TrialEnd.After(cutoff) {
			out = append(out, cloneSub(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrialEnd.Before(*out[j].TrialEnd) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Snapshot captures the full store state for unit-of-work rollback.
func (m *MemoryStore) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make(map[string]*Subscription, len(m.subs))
	for id, s := range m.subs {
		subs[id] = cloneSub(s)
	}
	return subs
}

// Restore replaces the store state with a previous snapshot.
func (m *MemoryStore) Restore(snapshot any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = snapshot.(map[string]*Subscription)
}

func cloneSub(s *Subscription) *Subscription {
	cp := *s
	if s.TrialStart != nil {
		t := *s.TrialStart
		cp.TrialStart = &t
	}
	if s.TrialEnd != nil {
		t := *s.TrialEnd
		cp.TrialEnd = &t
	}
	if s.CanceledAt != nil {
		t := *s.CanceledAt
		cp.CanceledAt = &t
	}
	if s.Metadata != nil {
		cp.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
