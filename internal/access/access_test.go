package access

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/license"
	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/subscription"
	"github.com/subgate/subgate/internal/tenant"
)

type fixture struct {
	svc     *Service
	apps    *application.MemoryStore
	tenants *tenant.MemoryStore
	subs    *subscription.MemoryStore
	subSvc  *subscription.Service
	licSvc  *license.Service
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	clock := func() time.Time { return now }

	apps := application.NewMemoryStore()
	require.NoError(t, apps.Create(context.Background(), &application.Application{
		ID: "app_1", ExternalID: "acme-saas", Name: "Acme SaaS",
		Status: application.StatusActive,
	}))

	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Create(context.Background(), &tenant.Tenant{
		ID: "ten_1", ApplicationID: "app_1", Name: "Acme",
		OwnerUserID: "u1", OwnerEmail: "owner@acme.test", Status: tenant.StatusActive,
	}))

	plans := plan.NewMemoryStore()
	require.NoError(t, plans.Create(context.Background(), &plan.Plan{
		ID: "plan_starter", ApplicationID: "app_1", Name: "starter",
		Price: 2900, Currency: "USD", BillingCycle: plan.CycleMonthly,
		TrialDays: 14, IsActive: true,
	}))

	subs := subscription.NewMemoryStore()
	subSvc := subscription.NewService(subs, plans, logger).WithClock(clock)

	licenses := license.NewMemoryStore()
	licSvc := license.NewService(licenses, subs, plans, plans, 24*time.Hour, logger).WithClock(clock)

	svc := NewService(apps, tenants, subs, licSvc, logger).WithClock(clock)
	return &fixture{svc: svc, apps: apps, tenants: tenants, subs: subs, subSvc: subSvc, licSvc: licSvc}
}

func (f *fixture) startTrial(t *testing.T) *subscription.Subscription {
	t.Helper()
	pl := &plan.Plan{
		ID: "plan_starter", ApplicationID: "app_1", Name: "starter",
		Price: 2900, Currency: "USD", BillingCycle: plan.CycleMonthly,
		TrialDays: 14, IsActive: true,
	}
	sub, err := f.subSvc.CreateTrial(context.Background(), "ten_1", "app_1", pl)
	require.NoError(t, err)
	return sub
}

func TestValidateUserUnknownApplication(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "nope", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.False(t, res.HasAccess)
	assert.Equal(t, ReasonAppNotFound, res.Reason)
}

func TestValidateUserDisabledApplication(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	app, err := f.apps.Get(context.Background(), "app_1")
	require.NoError(t, err)
	app.Status = application.StatusDisabled
	require.NoError(t, f.apps.Update(context.Background(), app))

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonAppDisabled, res.Reason)
}

func TestValidateUserUnknownUser(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "stranger",
	})
	require.NoError(t, err)
	assert.False(t, res.HasAccess)
	assert.Equal(t, ReasonTenantNotFound, res.Reason)
}

func TestValidateUserNoSubscription(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.False(t, res.HasAccess)
	assert.Equal(t, ReasonNoSubscription, res.Reason)
	assert.NotNil(t, res.Tenant)
}

func TestValidateUserTrialingGrantsAccessAndMintsLicense(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.startTrial(t)

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.True(t, res.HasAccess)
	assert.Empty(t, res.Reason)
	require.NotNil(t, res.License)
	assert.Equal(t, license.TypeTrial, res.License.Type)

	// A second validation reuses the minted license instead of issuing
	// another one.
	again, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, res.License.JTI, again.License.JTI)
}

func TestValidateUserByEmail(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.startTrial(t)

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", UserEmail: "owner@acme.test",
	})
	require.NoError(t, err)
	assert.True(t, res.HasAccess)
	assert.Equal(t, "ten_1", res.Tenant.ID)
}

func TestValidateUserPastDueDeniesAccess(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	sub := f.startTrial(t)

	_, err := f.subSvc.ForceStatus(context.Background(), sub.ID, subscription.StatusPastDue)
	require.NoError(t, err)

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.False(t, res.HasAccess)
	assert.Equal(t, ReasonSubscriptionPastDue, res.Reason)
	assert.NotNil(t, res.Subscription)
}

func TestValidateUserSuspendedTenant(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.startTrial(t)

	ten, err := f.tenants.Get(context.Background(), "ten_1")
	require.NoError(t, err)
	ten.Status = tenant.StatusSuspended
	require.NoError(t, f.tenants.Update(context.Background(), ten))

	res, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas", ExternalUserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonTenantSuspended, res.Reason)
}

func TestValidateUserRequiresIdentifier(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	_, err := f.svc.ValidateUser(context.Background(), ValidateParams{
		ExternalAppID: "acme-saas",
	})
	assert.ErrorIs(t, err, ErrMissingUserIdentifier)
}
