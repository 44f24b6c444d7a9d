package payment

import (
	"context"

	"github.com/subgate/subgate/internal/pagination"
)

// Store persists subscription payments.
//
// Create enforces the single-pending invariant: at most one pending
// payment may exist per subscription at a time.
type Store interface {
	Create(ctx context.Context, p *SubscriptionPayment) error
	Get(ctx context.Context, id string) (*SubscriptionPayment, error)
	Update(ctx context.Context, p *SubscriptionPayment) error
	GetPendingBySubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayment, error)
	// ListPending returns pending payments oldest first, starting after
	// the cursor. Callers fetch limit+1 rows for has_more detection.
	ListPending(ctx context.Context, after *pagination.Cursor, limit int) ([]*SubscriptionPayment, error)
}
