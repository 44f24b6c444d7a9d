// Package onboarding creates a tenant together with its first
// subscription and license in one transaction. Onboarding is
// idempotent on (application, owner user): repeating the call returns
// the existing tenant instead of failing.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/license"
	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/storage"
	"github.com/subgate/subgate/internal/subscription"
	"github.com/subgate/subgate/internal/tenant"
	"github.com/subgate/subgate/internal/validation"
)

// Errors
var (
	ErrNoActivePlans = errors.New("onboarding: application has no active plans")
	ErrInvalidEmail  = errors.New("onboarding: invalid owner email")
	ErrInvalidDomain = errors.New("onboarding: invalid domain")
)

// Params describes the tenant to onboard.
type Params struct {
	ExternalAppID string
	Name          string
	OwnerUserID   string
	OwnerEmail    string
	Domain        string
	PlanName      string
}

// Result is the onboarded tenant with its subscription and license.
// Created is false when the tenant already existed.
type Result struct {
	Created      bool                       `json:"created"`
	Tenant       *tenant.Tenant             `json:"tenant"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
	License      *license.License           `json:"license,omitempty"`
}

// Service onboards tenants.
type Service struct {
	apps    application.Store
	tenants tenant.Store
	plans   plan.Store
	subSvc  *subscription.Service
	licSvc  *license.Service
	runner  storage.TxRunner
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an onboarding service.
func NewService(apps application.Store, tenants tenant.Store, plans plan.Store, subSvc *subscription.Service, licSvc *license.Service, runner storage.TxRunner, logger *slog.Logger) *Service {
	return &Service{
		apps:    apps,
		tenants: tenants,
		plans:   plans,
		subSvc:  subSvc,
		licSvc:  licSvc,
		runner:  runner,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Onboard creates the tenant, its trial (or immediately active)
// subscription and its first license atomically. When the (application,
// owner) pair already has a tenant the existing row is returned with
// Created=false and nothing is written.
func (s *Service) Onboard(ctx context.Context, params Params) (*Result, error) {
	if !validation.IsValidEmail(params.OwnerEmail) {
		return nil, ErrInvalidEmail
	}
	if params.Domain != "" && !validation.IsValidDomain(params.Domain) {
		return nil, ErrInvalidDomain
	}

	app, err := s.apps.GetByExternalID(ctx, params.ExternalAppID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.tenants.GetByAppOwner(ctx, app.ID, params.OwnerUserID); err == nil {
		return s.existingResult(ctx, existing)
	} else if !errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, err
	}

	pl, err := s.pickPlan(ctx, app.ID, params.PlanName)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ten := &tenant.Tenant{
		ID:            idgen.WithPrefix("ten_"),
		ApplicationID: app.ID,
		Name:          validation.SanitizeString(params.Name, 200),
		OwnerUserID:   params.OwnerUserID,
		OwnerEmail:    validation.SanitizeEmail(params.OwnerEmail),
		BillingEmail:  validation.SanitizeEmail(params.OwnerEmail),
		Domain:        params.Domain,
		Status:        tenant.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result := &Result{Created: true, Tenant: ten}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tenants.Create(ctx, ten); err != nil {
			return err
		}
		sub, err := s.subSvc.CreateTrial(ctx, ten.ID, app.ID, pl)
		if err != nil {
			return err
		}
		issued, err := s.licSvc.Issue(ctx, ten.ID)
		if err != nil {
			return err
		}
		result.Subscription = sub
		result.License = issued.License
		return nil
	})
	if err != nil {
		// Two onboard calls raced on the same owner: the loser reads
		// the winner's row.
		if errors.Is(err, tenant.ErrTenantExists) {
			if existing, lerr := s.tenants.GetByAppOwner(ctx, app.ID, params.OwnerUserID); lerr == nil {
				return s.existingResult(ctx, existing)
			}
		}
		return nil, err
	}

	s.logger.Info("tenant onboarded",
		"tenant_id", ten.ID,
		"application_id", app.ID,
		"plan", pl.Name,
		"status", string(result.Subscription.Status))
	return result, nil
}

func (s *Service) existingResult(ctx context.Context, ten *tenant.Tenant) (*Result, error) {
	result := &Result{Created: false, Tenant: ten}
	sub, err := s.subSvc.GetCurrent(ctx, ten.ID)
	if err == nil {
		result.Subscription = sub
	} else if !errors.Is(err, subscription.ErrNoCurrentSub) {
		return nil, err
	}
	return result, nil
}

// pickPlan resolves the requested plan, or the cheapest active plan of
// the application when no name was given.
func (s *Service) pickPlan(ctx context.Context, applicationID, planName string) (*plan.Plan, error) {
	if planName != "" {
		pl, err := s.plans.GetByName(ctx, applicationID, planName)
		if err != nil {
			return nil, err
		}
		if !pl.IsActive {
			return nil, plan.ErrPlanInactive
		}
		return pl, nil
	}

	active, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, pl := range active {
		if pl.ApplicationID == applicationID {
			return pl, nil
		}
	}
	return nil, ErrNoActivePlans
}
