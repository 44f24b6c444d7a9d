package subscription

import (
	"context"
	"time"
)

// Store persists subscriptions.
//
// Update is an optimistic-concurrency write: it matches on the
// subscription's Version, increments it on success and returns
// ErrVersionConflict when another writer got there first.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetCurrentByTenant returns the tenant's most recent subscription in
	// trialing, active or past_due.
	GetCurrentByTenant(ctx context.Context, tenantID string) (*Subscription, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Subscription, error)
	GetByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	// ListTrialingExpired returns trialing subscriptions whose trial ended
	// at or before cutoff, oldest first, up to limit.
	ListTrialingExpired(ctx context.Context, cutoff time.Time, limit int) ([]*Subscription, error)
}
