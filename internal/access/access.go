// Package access answers the question external applications ask most:
// does this user have access right now. It chains tenant, subscription
// and license resolution into one verdict with a machine-readable
// reason when access is denied.
package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/license"
	"github.com/subgate/subgate/internal/subscription"
	"github.com/subgate/subgate/internal/tenant"
)

// Denial reasons returned when has_access is false.
const (
	ReasonAppNotFound         = "application_not_found"
	ReasonAppDisabled         = "application_disabled"
	ReasonTenantNotFound      = "tenant_not_found"
	ReasonTenantSuspended     = "tenant_suspended"
	ReasonTenantCanceled      = "tenant_canceled"
	ReasonNoSubscription      = "no_active_subscription"
	ReasonSubscriptionPastDue = "subscription_past_due"
)

// ErrMissingUserIdentifier is returned when neither a user id nor an
// email was provided.
var ErrMissingUserIdentifier = errors.New("access: external_user_id or user_email required")

// ValidateParams identifies the user whose access is being checked.
type ValidateParams struct {
	ExternalAppID  string
	ExternalUserID string
	UserEmail      string
}

// Result is the access verdict plus the resolved chain of entities.
type Result struct {
	HasAccess    bool                       `json:"hasAccess"`
	Reason       string                     `json:"reason,omitempty"`
	Tenant       *tenant.Tenant             `json:"tenant,omitempty"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
	License      *license.License           `json:"license,omitempty"`
}

// Service resolves user access.
type Service struct {
	apps    application.Store
	tenants tenant.Store
	subs    subscription.Store
	licSvc  *license.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an access service.
func NewService(apps application.Store, tenants tenant.Store, subs subscription.Store, licSvc *license.Service, logger *slog.Logger) *Service {
	return &Service{
		apps:    apps,
		tenants: tenants,
		subs:    subs,
		licSvc:  licSvc,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ValidateUser walks application → tenant → subscription → license and
// returns the first reason the chain breaks, or a granted result with
// the tenant's current license. A denial is a normal result, not an
// error; errors mean the verdict could not be computed.
func (s *Service) ValidateUser(ctx context.Context, params ValidateParams) (*Result, error) {
	if params.ExternalUserID == "" && params.UserEmail == "" {
		return nil, ErrMissingUserIdentifier
	}

	app, err := s.apps.GetByExternalID(ctx, params.ExternalAppID)
	if err != nil {
		if errors.Is(err, application.ErrAppNotFound) {
			return &Result{Reason: ReasonAppNotFound}, nil
		}
		return nil, err
	}
	if app.Status != application.StatusActive {
		return &Result{Reason: ReasonAppDisabled}, nil
	}

	ten, err := s.lookupTenant(ctx, app.ID, params)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return &Result{Reason: ReasonTenantNotFound}, nil
		}
		return nil, err
	}
	switch ten.Status {
	case tenant.StatusSuspended:
		return &Result{Reason: ReasonTenantSuspended, Tenant: ten}, nil
	case tenant.StatusCanceled:
		return &Result{Reason: ReasonTenantCanceled, Tenant: ten}, nil
	}

	sub, err := s.subs.GetCurrentByTenant(ctx, ten.ID)
	if err != nil {
		if errors.Is(err, subscription.ErrNoCurrentSub) {
			return &Result{Reason: ReasonNoSubscription, Tenant: ten}, nil
		}
		return nil, err
	}
	if sub.Status == subscription.StatusPastDue {
		return &Result{Reason: ReasonSubscriptionPastDue, Tenant: ten, Subscription: sub}, nil
	}

	lic, err := s.licSvc.CurrentForSubscription(ctx, sub.ID)
	if errors.Is(err, license.ErrLicenseNotFound) {
		// First validation since onboarding or since the old license
		// lapsed: mint one on the fly.
		issued, ierr := s.licSvc.Issue(ctx, ten.ID)
		if ierr != nil {
			return nil, ierr
		}
		lic = issued.License
	} else if err != nil {
		return nil, err
	}

	return &Result{
		HasAccess:    true,
		Tenant:       ten,
		Subscription: sub,
		License:      lic,
	}, nil
}

func (s *Service) lookupTenant(ctx context.Context, applicationID string, params ValidateParams) (*tenant.Tenant, error) {
	if params.ExternalUserID != "" {
		return s.tenants.GetByAppOwner(ctx, applicationID, params.ExternalUserID)
	}
	return s.tenants.GetByAppEmail(ctx, applicationID, params.UserEmail)
}
