package application

import "context"

// Store persists applications.
type Store interface {
	Create(ctx context.Context, a *Application) error
	Get(ctx context.Context, id string) (*Application, error)
	GetByExternalID(ctx context.Context, externalID string) (*Application, error)
	Update(ctx context.Context, a *Application) error
	List(ctx context.Context) ([]*Application, error)
}
