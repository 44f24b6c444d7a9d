package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/tenant"
	"github.com/subgate/subgate/internal/validation"
)

// RecordParams carries one usage sample.
type RecordParams struct {
	TenantID string
	Metric   string
	Value    float64
	Metadata map[string]string
}

// Service validates and persists usage samples.
type Service struct {
	store   Store
	tenants tenant.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a usage service.
func NewService(store Store, tenants tenant.Store, logger *slog.Logger) *Service {
	return &Service{store: store, tenants: tenants, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Record persists one sample for a tenant owned by applicationID.
func (s *Service) Record(ctx context.Context, applicationID string, params RecordParams) (*Record, error) {
	if !validation.IsValidMetric(params.Metric) {
		return nil, ErrInvalidMetric
	}
	if params.Value < 0 {
		return nil, ErrInvalidValue
	}

	ten, err := s.tenants.Get(ctx, params.TenantID)
	if err != nil {
		return nil, err
	}
	// An application may only report usage for its own tenants.
	if ten.ApplicationID != applicationID {
		return nil, tenant.ErrTenantNotFound
	}

	r := &Record{
		ID:            idgen.WithPrefix("use_"),
		TenantID:      ten.ID,
		ApplicationID: applicationID,
		Metric:        params.Metric,
		Value:         params.Value,
		Metadata:      params.Metadata,
		RecordedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Debug("usage recorded",
		"tenant_id", r.TenantID,
		"metric", r.Metric,
		"value", r.Value)
	return r, nil
}
