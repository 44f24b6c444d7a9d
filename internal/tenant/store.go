package tenant

import "context"

// Store persists tenant data.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	// GetByAppOwner looks up the tenant keyed on (application, owner user).
	GetByAppOwner(ctx context.Context, applicationID, ownerUserID string) (*Tenant, error)
	// GetByAppEmail looks up the tenant keyed on (application, owner email).
	GetByAppEmail(ctx context.Context, applicationID, ownerEmail string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
}
