package plan

import "context"

// Store persists the plan catalog.
type Store interface {
	Create(ctx context.Context, p *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	GetByName(ctx context.Context, applicationID, name string) (*Plan, error)
	ListActive(ctx context.Context) ([]*Plan, error)
	Update(ctx context.Context, p *Plan) error
}

// FeatureCatalog resolves feature codes to display metadata.
type FeatureCatalog interface {
	GetFeature(ctx context.Context, code string) (*Feature, error)
}
