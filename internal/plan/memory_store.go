package plan

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory plan store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	plans    map[string]*Plan  // by ID
	features map[string]*Feature
}

// NewMemoryStore creates a new in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:    make(map[string]*Plan),
		features: make(map[string]*Feature),
	}
}

func (m *MemoryStore) Create(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.plans {
		if existing.ApplicationID == p.ApplicationID && existing.Name == p.Name {
			return ErrNameTaken
		}
	}

	cp := clonePlan(p)
	m.plans[p.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return clonePlan(p), nil
}

func (m *MemoryStore) GetByName(_ context.Context, applicationID, name string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.plans {
		if p.ApplicationID == applicationID && p.Name == name {
			return clonePlan(p), nil
		}
	}
	return nil, ErrPlanNotFound
}

func (m *MemoryStore) ListActive(_ context.Context) ([]*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Plan
	for _, p := range m.plans {
		if p.IsActive {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plans[p.ID]; !ok {
		return ErrPlanNotFound
	}
	m.plans[p.ID] = clonePlan(p)
	return nil
}

// PutFeature registers feature catalog metadata.
func (m *MemoryStore) PutFeature(f *Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.features[f.Code] = &cp
}

func (m *MemoryStore) GetFeature(_ context.Context, code string) (*Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.features[code]
	if !ok {
		return nil, ErrFeatureNotFound
	}
	cp := *f
	return &cp, nil
}

// Snapshot captures the full store state for unit-of-work rollback.
func (m *MemoryStore) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plans := make(map[string]*Plan, len(m.plans))
	for id, p := range m.plans {
		plans[id] = clonePlan(p)
	}
	return plans
}

// Restore replaces the store state with a previous snapshot.
func (m *MemoryStore) Restore(snapshot any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = snapshot.(map[string]*Plan)
}

func clonePlan(p *Plan) *Plan {
	cp := *p
	cp.Entitlements = p.Entitlements.Clone()
	return &cp
}

var (
	_ Store          = (*MemoryStore)(nil)
	_ FeatureCatalog = (*MemoryStore)(nil)
)
