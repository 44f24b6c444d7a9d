package usage

import (
	"context"
	"time"
)

// Store persists usage records.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// ListByTenantMetric returns a tenant's samples for one metric in
	// [from, to), newest first.
	ListByTenantMetric(ctx context.Context, tenantID, metric string, from, to time.Time) ([]*Record, error)
	// SumByTenantMetric totals a tenant's samples for one metric in [from, to).
	SumByTenantMetric(ctx context.Context, tenantID, metric string, from, to time.Time) (float64, error)
}
