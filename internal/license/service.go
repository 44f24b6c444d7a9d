package license

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/metrics"
	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/subscription"
)

// IssueResult is returned on successful license issuance.
type IssueResult struct {
	License      *License                   `json:"license"`
	Subscription *subscription.Subscription `json:"subscription"`
	Entitlements plan.Entitlements          `json:"entitlements"`
}

// ValidationResult is the outcome of validating a JTI.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	License *License `json:"data,omitempty"`
}

// FeatureCheck is the outcome of checking one feature against a license.
type FeatureCheck struct {
	Enabled      bool               `json:"enabled"`
	Feature      *plan.Feature      `json:"feature,omitempty"`
	Value        any                `json:"value,omitempty"`
	Entitlements *plan.Entitlements `json:"entitlements,omitempty"`
}

// Service issues and validates licenses.
type Service struct {
	store   Store
	subs    subscription.Store
	plans   plan.Store
	catalog plan.FeatureCatalog
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new license service. ttl is the validity window
// for newly issued licenses.
func NewService(store Store, subs subscription.Store, plans plan.Store, catalog plan.FeatureCatalog, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		subs:    subs,
		plans:   plans,
		catalog: catalog,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store exposes the underlying license store.
func (s *Service) Store() Store {
	return s.store
}

// CurrentForSubscription returns the subscription's newest license that
// is still valid at the service clock, or ErrLicenseNotFound.
func (s *Service) CurrentForSubscription(ctx context.Context, subscriptionID string) (*License, error) {
	licenses, err := s.store.ListActiveBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var newest *License
	for _, lic := range licenses {
		resolved, valid := Resolve(*lic, now)
		if !valid {
			continue
		}
		if newest == nil || resolved.IssuedAt.After(newest.IssuedAt) {
			l := resolved
			newest = &l
		}
	}
	if newest == nil {
		return nil, ErrLicenseNotFound
	}
	return newest, nil
}

// Issue creates a fresh license for the tenant's trialing or active
// subscription. Previously issued licenses stay valid until they
// expire on their own; concurrent valid licenses simplify client-side
// refresh races.
func (s *Service) Issue(ctx context.Context, tenantID string) (*IssueResult, error) {
	sub, err := s.subs.GetCurrentByTenant(ctx, tenantID)
	if err != nil {
		return nil, ErrNoEligibleSub
	}
	if sub.Status != subscription.StatusTrialing && sub.Status != subscription.StatusActive {
		return nil, ErrNoEligibleSub
	}

	pl, err := s.plans.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	licType := TypePaid
	if sub.Status == subscription.StatusTrialing {
		licType = TypeTrial
	}

	lic := &License{
		ID:             idgen.WithPrefix("lic_"),
		TenantID:       tenantID,
		SubscriptionID: sub.ID,
		JTI:            uuid.NewString(),
		Type:           licType,
		Status:         StatusActive,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.ttl),
		Entitlements:   pl.Entitlements.Clone(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, lic); err != nil {
		return nil, err
	}

	metrics.LicensesIssuedTotal.WithLabelValues(string(licType)).Inc()
	s.logger.Info("license issued",
		"license_id", lic.ID,
		"tenant_id", tenantID,
		"subscription_id", sub.ID,
		"type", string(licType))

	return &IssueResult{License: lic, Subscription: sub, Entitlements: lic.Entitlements}, nil
}

// Validate checks a JTI. An unknown JTI is not an error, just invalid.
// Active licenses past their expiry are flipped to expired and
// persisted before returning, so expiry is monotonic: once a JTI
// validates false it stays false.
func (s *Service) Validate(ctx context.Context, jti string) (*ValidationResult, error) {
	lic, err := s.store.GetByJTI(ctx, jti)
	if err != nil {
		if err == ErrLicenseNotFound {
			metrics.LicenseValidationsTotal.WithLabelValues("not_found").Inc()
			return &ValidationResult{Valid: false}, nil
		}
		return nil, err
	}

	now := s.now().UTC()
	resolved, valid := Resolve(*lic, now)
	if resolved.Status != lic.Status {
		resolved.UpdatedAt = now
		if err := s.store.Update(ctx, &resolved); err != nil {
			return nil, err
		}
		s.logger.Info("license lazily expired", "license_id", lic.ID, "jti", jti)
	}

	if !valid {
		metrics.LicenseValidationsTotal.WithLabelValues("invalid").Inc()
		return &ValidationResult{Valid: false}, nil
	}

	metrics.LicenseValidationsTotal.WithLabelValues("valid").Inc()
	return &ValidationResult{Valid: true, License: &resolved}, nil
}

// CheckFeature answers whether a feature is enabled under a license's
// entitlement snapshot, enriched with catalog metadata when the code
// is known. Only boolean (or "true"/"false" string) values count as
// switches; other values are returned as metadata.
func (s *Service) CheckFeature(ctx context.Context, jti, featureCode string) (*FeatureCheck, bool, error) {
	result, err := s.Validate(ctx, jti)
	if err != nil {
		return nil, false, err
	}
	if !result.Valid {
		return &FeatureCheck{Enabled: false}, false, nil
	}

	lic := result.License
	check := &FeatureCheck{
		Enabled:      lic.Entitlements.FeatureEnabled(featureCode),
		Entitlements: &lic.Entitlements,
	}
	if v, ok := lic.Entitlements.Features[featureCode]; ok {
		check.Value = v
	}
	if s.catalog != nil {
		if f, err := s.catalog.GetFeature(ctx, featureCode); err == nil {
			check.Feature = f
		}
	}
	return check, true, nil
}

// MarkPaid converts all active licenses of a subscription to paid with
// the given expiry. The sweeper calls this when a trial converts.
func (s *Service) MarkPaid(ctx context.Context, subscriptionID string, expiresAt time.Time) error {
	licenses, err := s.store.ListActiveBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	for _, lic := range licenses {
		lic.Type = TypePaid
		lic.Status = StatusActive
		lic.ExpiresAt = expiresAt
		lic.UpdatedAt = now
		if err := s.store.Update(ctx, lic); err != nil {
			return err
		}
	}
	return nil
}

// ExpireForSubscription expires all active licenses of a subscription.
// The sweeper calls this when a trial falls back to past_due.
func (s *Service) ExpireForSubscription(ctx context.Context, subscriptionID string) error {
	licenses, err := s.store.ListActiveBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	for _, lic := range licenses {
		lic.Status = StatusExpired
		lic.UpdatedAt = now
		if err := s.store.Update(ctx, lic); err != nil {
			return err
		}
	}
	return nil
}
