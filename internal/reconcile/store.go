package reconcile

import "context"

// Store persists webhook events.
type Store interface {
	Create(ctx context.Context, e *WebhookEvent) error
	GetByProviderEventID(ctx context.Context, provider, eventID string) (*WebhookEvent, error)
	Update(ctx context.Context, e *WebhookEvent) error
}
