package payment

import (
	"context"
	"sort"
	"sync"

	"github.com/subgate/subgate/internal/pagination"
)

// MemoryStore is an in-memory payment store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]*SubscriptionPayment // by ID
}

// NewMemoryStore creates a new in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]*SubscriptionPayment)}
}

func (m *MemoryStore) Create(_ context.Context, p *SubscriptionPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Status == StatusPending {
		for _, existing := range m.payments {
			if existing.SubscriptionID == p.SubscriptionID && existing.Status == StatusPending {
				return ErrPendingExists
			}
		}
	}

	cp := clonePayment(p)
	m.payments[p.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*SubscriptionPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (m *MemoryStore) Update(_ context.Context, p *SubscriptionPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[p.ID]; !ok {
		return ErrPaymentNotFound
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m *MemoryStore) GetPendingBySubscription(_ context.Context, subscriptionID string) (*SubscriptionPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.payments {
		if p.SubscriptionID == subscriptionID && p.Status == StatusPending {
			return clonePayment(p), nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (m *MemoryStore) ListPending(_ context.Context, after *pagination.Cursor, limit int) ([]*SubscriptionPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*SubscriptionPayment
	for _, p := range m.payments {
		if p.Status != StatusPending {
			continue
		}
		if after != nil {
			if p.CreatedAt.Before(after.CreatedAt) {
				continue
			}
			if p.CreatedAt.Equal(after.CreatedAt) && p.ID <= after.ID {
				continue
			}
		}
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Snapshot captures the full store state for unit-of-work rollback.
func (m *MemoryStore) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payments := make(map[string]*SubscriptionPayment, len(m.payments))
	for id, p := range m.payments {
		payments[id] = clonePayment(p)
	}
	return payments
}

// Restore replaces the store state with a previous snapshot.
func (m *MemoryStore) Restore(snapshot any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = snapshot.(map[string]*SubscriptionPayment)
}

func clonePayment(p *SubscriptionPayment) *SubscriptionPayment {
	cp := *p
	if p.PaidAt != nil {
		t := *p.PaidAt
		cp.PaidAt = &t
	}
	if p.FailedAt != nil {
		t := *p.FailedAt
		cp.FailedAt = &t
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
