package license

import "context"

// Store persists licenses. Old licenses are expired or revoked, never
// deleted.
type Store interface {
	Create(ctx context.Context, l *License) error
	GetByJTI(ctx context.Context, jti string) (*License, error)
	Update(ctx context.Context, l *License) error
	ListActiveBySubscription(ctx context.Context, subscriptionID string) ([]*License, error)
}
