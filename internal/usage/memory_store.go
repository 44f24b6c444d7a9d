package usage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory usage store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) Create(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = cloneRecord(r)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(r), nil
}

func (m *MemoryStore) ListByTenantMetric(ctx context.Context, tenantID, metric string, from, to time.Time) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Record
	for _, r := range m.records {
		if r.TenantID != tenantID || r.Metric != metric {
			continue
		}
		if r.RecordedAt.Before(from) || !r.RecordedAt.Before(to) {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out, nil
}

func (m *MemoryStore) SumByTenantMetric(ctx context.Context, tenantID, metric string, from, to time.Time) (float64, error) {
	rows, err := m.ListByTenantMetric(ctx, tenantID, metric, from, to)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range rows {
		total += r.Value
	}
	return total, nil
}

// Snapshot returns a copy of the store state.
func (m *MemoryStore) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make(map[string]*Record, len(m.records))
	for id, r := range m.records {
		records[id] = cloneRecord(r)
	}
	return records
}

// Restore replaces the store state with a snapshot.
func (m *MemoryStore) Restore(snapshot any) {
	records, ok := snapshot.(map[string]*Record)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*Record, len(records))
	for id, r := range records {
		m.records[id] = cloneRecord(r)
	}
}

func cloneRecord(r *Record) *Record {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
