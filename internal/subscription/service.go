package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/metrics"
	"github.com/subgate/subgate/internal/plan"
)

// TrialOutcome is the result of resolving one trial-expired subscription.
type TrialOutcome string

const (
	TrialActivated TrialOutcome = "activated"
	TrialPastDue   TrialOutcome = "past_due"
	TrialSkipped   TrialOutcome = "skipped"
)

// Service implements the subscription state machine on top of a Store.
type Service struct {
	store  Store
	plans  plan.Store
	logger *slog.Logger
	pubs   []Publisher
	now    func() time.Time
}

// NewService creates a new subscription service.
func NewService(store Store, plans plan.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		plans:  plans,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddPublisher registers a lifecycle event publisher.
func (s *Service) AddPublisher(p Publisher) {
	s.pubs = append(s.pubs, p)
}

// Store returns the underlying subscription store.
func (s *Service) Store() Store {
	return s.store
}

// Get returns a subscription by ID.
func (s *Service) Get(ctx context.Context, id string) (*Subscription, error) {
	return s.store.Get(ctx, id)
}

// GetCurrent returns the tenant's current subscription.
func (s *Service) GetCurrent(ctx context.Context, tenantID string) (*Subscription, error) {
	return s.store.GetCurrentByTenant(ctx, tenantID)
}

// CreateTrial creates the tenant's subscription to a plan. Plans with
// trial_days > 0 start trialing; plans without a trial start active
// immediately. Periods are flat day counts from now.
//
// Exactly one row is created; the caller guards against duplicates by
// checking for an existing tenant first.
func (s *Service) CreateTrial(ctx context.Context, tenantID, applicationID string, pl *plan.Plan) (*Subscription, error) {
	now := s.now().UTC()

	sub := &Subscription{
		ID:            idgen.WithPrefix("sub_"),
		TenantID:      tenantID,
		PlanID:        pl.ID,
		ApplicationID: applicationID,
		PeriodStart:   now,
		PeriodEnd:     now.AddDate(0, 0, pl.BillingCycle.Days()),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if pl.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, pl.TrialDays)
		sub.Status = StatusTrialing
		sub.TrialStart = &now
		sub.TrialEnd = &trialEnd
	} else {
		sub.Status = StatusActive
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"tenant_id", tenantID,
		"plan_id", pl.ID,
		"status", string(sub.Status))
	return sub, nil
}

// ChangePlan moves a subscription to a new plan. The current billing
// period restarts from now; status is untouched and no proration or
// credit is applied.
func (s *Service) ChangePlan(ctx context.Context, subscriptionID, newPlanID string) (*Subscription, error) {
	sub, err := s.store.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	pl, err := s.plans.Get(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if !pl.IsActive {
		return nil, plan.ErrPlanInactive
	}

	now := s.now().UTC()
	sub.PlanID = pl.ID
	sub.PeriodStart = now
	sub.PeriodEnd = maxTime(now.AddDate(0, 0, pl.BillingCycle.Days()), sub.PeriodEnd)
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription plan changed",
		"subscription_id", sub.ID, "plan_id", pl.ID)
	return sub, nil
}

// ForceStatus is an administrative override that bypasses the
// transition guards. Escape hatch, not a normal-path operation.
func (s *Service) ForceStatus(ctx context.Context, subscriptionID string, to Status) (*Subscription, error) {
	sub, err := s.store.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	from := sub.Status
	sub.Status = to
	if to == StatusCanceled && sub.CanceledAt == nil {
		sub.CanceledAt = &now
	}
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Warn("subscription status forced",
		"subscription_id", sub.ID, "from", string(from), "to", string(to))
	s.afterTransition(sub, from, to, now)
	return sub, nil
}

// Upgrade changes the tenant's current subscription plan and/or
// registers a payment method. Registering a mandate over an existing
// one is a conflict the caller must resolve manually.
func (s *Service) Upgrade(ctx context.Context, tenantID, planID, provider, providerSubID, providerCustomerID string) (*Subscription, error) {
	sub, err := s.store.GetCurrentByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if providerSubID != "" && sub.ProviderSubscriptionID != "" && sub.ProviderSubscriptionID != providerSubID {
		return nil, ErrProviderSubSet
	}

	now := s.now().UTC()
	if planID != "" && planID != sub.PlanID {
		pl, err := s.plans.Get(ctx, planID)
		if err != nil {
			return nil, err
		}
		if !pl.IsActive {
			return nil, plan.ErrPlanInactive
		}
		sub.PlanID = pl.ID
		sub.PeriodStart = now
		sub.PeriodEnd = maxTime(now.AddDate(0, 0, pl.BillingCycle.Days()), sub.PeriodEnd)
	}
	if provider != "" {
		sub.PaymentProvider = provider
	}
	if providerSubID != "" {
		sub.ProviderSubscriptionID = providerSubID
	}
	if providerCustomerID != "" {
		sub.ProviderCustomerID = providerCustomerID
	}
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription upgraded",
		"subscription_id", sub.ID,
		"tenant_id", tenantID,
		"plan_id", sub.PlanID,
		"provider", provider)
	return sub, nil
}

// Transition moves a subscription to a new status through the guard
// table and persists it with an optimistic write.
func (s *Service) Transition(ctx context.Context, sub *Subscription, to Status) error {
	from := sub.Status
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}

	now := s.now().UTC()
	sub.Status = to
	if to == StatusCanceled && sub.CanceledAt == nil {
		sub.CanceledAt = &now
	}
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return err
	}

	s.afterTransition(sub, from, to, now)
	return nil
}

// ApplySuccessfulPayment renews a subscription after a confirmed
// payment: activate if not already active and restart the billing
// period from now. PeriodEnd never moves backwards.
func (s *Service) ApplySuccessfulPayment(ctx context.Context, sub *Subscription) error {
	pl, err := s.plans.Get(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	from := sub.Status
	if from != StatusActive {
		if !CanTransition(from, StatusActive) {
			return ErrInvalidTransition
		}
		sub.Status = StatusActive
	}
	delete(sub.Metadata, MetaRequiresPaymentMethod)
	sub.PeriodStart = now
	sub.PeriodEnd = maxTime(now.AddDate(0, 0, pl.BillingCycle.Days()), sub.PeriodEnd)
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return err
	}

	if from != StatusActive {
		s.afterTransition(sub, from, StatusActive, now)
	}
	return nil
}

// ResolveTrialExpiry resolves one trialing subscription whose trial has
// lapsed. A recurring-payment mandate on file means the provider will
// charge automatically, so the subscription activates and the period
// extends one full billing cycle from now; otherwise it falls to
// past_due and is flagged as needing a payment method.
//
// Subscriptions not yet past their trial end are skipped unchanged.
func (s *Service) ResolveTrialExpiry(ctx context.Context, sub *Subscription) (TrialOutcome, error) {
	now := s.now().UTC()
	if sub.Status != StatusTrialing || sub.TrialEnd == nil || now.Before(*sub.TrialEnd) {
		return TrialSkipped, nil
	}

	if sub.ProviderSubscriptionID != "" {
		pl, err := s.plans.Get(ctx, sub.PlanID)
		if err != nil {
			return TrialSkipped, err
		}
		from := sub.Status
		sub.Status = StatusActive
		sub.PeriodStart = now
		sub.PeriodEnd = maxTime(now.AddDate(0, 0, pl.BillingCycle.Days()), sub.PeriodEnd)
		sub.UpdatedAt = now
		if err := s.store.Update(ctx, sub); err != nil {
			return TrialSkipped, err
		}
		s.afterTransition(sub, from, StatusActive, now)
		return TrialActivated, nil
	}

	from := sub.Status
	sub.Status = StatusPastDue
	sub.SetMeta(MetaRequiresPaymentMethod, "true")
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return TrialSkipped, err
	}
	s.afterTransition(sub, from, StatusPastDue, now)
	return TrialPastDue, nil
}

func (s *Service) afterTransition(sub *Subscription, from, to Status, at time.Time) {
	metrics.SubscriptionTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	s.logger.Info("subscription transitioned",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
		"from", string(from),
		"to", string(to))

	event := LifecycleEvent{
		Type:           "subscription." + string(to),
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		ApplicationID:  sub.ApplicationID,
		PlanID:         sub.PlanID,
		From:           from,
		To:             to,
		At:             at,
	}
	for _, p := range s.pubs {
		p.Publish(event)
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
