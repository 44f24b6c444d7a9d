package license

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/subscription"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fixture struct {
	svc   *Service
	store *MemoryStore
	subs  *subscription.MemoryStore
	plans *plan.MemoryStore
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := NewMemoryStore()
	subs := subscription.NewMemoryStore()
	plans := plan.NewMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	svc := NewService(store, subs, plans, plans, 24*time.Hour, logger).WithClock(fixedClock(now))
	return &fixture{svc: svc, store: store, subs: subs, plans: plans}
}

func (f *fixture) seedSubscription(t *testing.T, status subscription.Status, now time.Time) *subscription.Subscription {
	t.Helper()
	require.NoError(t, f.plans.Create(context.Background(), &plan.Plan{
		ID: "plan_basic", ApplicationID: "app_1", Name: "basic",
		BillingCycle: plan.CycleMonthly, IsActive: true,
		Entitlements: plan.Entitlements{
			MaxUsers: 5,
			Features: map[string]any{"api_access": true, "sso": "true"},
			Limits:   map[string]int64{"api_calls": 1000},
		},
	}))
	sub := &subscription.Subscription{
		ID: "sub_1", TenantID: "ten_1", PlanID: "plan_basic", ApplicationID: "app_1",
		Status: status, PeriodStart: now, PeriodEnd: now.AddDate(0, 0, 30),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))
	return sub
}

func TestResolvePure(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	base := License{Status: StatusActive, ExpiresAt: now.Add(time.Hour)}

	resolved, valid := Resolve(base, now)
	assert.True(t, valid)
	assert.Equal(t, StatusActive, resolved.Status)

	resolved, valid = Resolve(base, now.Add(2*time.Hour))
	assert.False(t, valid)
	assert.Equal(t, StatusExpired, resolved.Status)

	// Non-active statuses are never valid and never change.
	for _, st := range []Status{StatusExpired, StatusRevoked, StatusSuspended} {
		l := License{Status: st, ExpiresAt: now.Add(time.Hour)}
		resolved, valid = Resolve(l, now)
		assert.False(t, valid)
		assert.Equal(t, st, resolved.Status)
	}
}

func TestIssueSnapshotsEntitlements(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusTrialing, now)

	result, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)
	assert.Equal(t, TypeTrial, result.License.Type)
	assert.Equal(t, StatusActive, result.License.Status)
	assert.Equal(t, now.Add(24*time.Hour), result.License.ExpiresAt)
	assert.NotEmpty(t, result.License.JTI)

	// Editing the plan after issuance must not leak into the license.
	pl, err := f.plans.Get(context.Background(), "plan_basic")
	require.NoError(t, err)
	pl.Entitlements.Features["api_access"] = false
	require.NoError(t, f.plans.Update(context.Background(), pl))

	stored, err := f.store.GetByJTI(context.Background(), result.License.JTI)
	require.NoError(t, err)
	assert.Equal(t, true, stored.Entitlements.Features["api_access"])
}

func TestIssuePaidTypeForActiveSubscription(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusActive, now)

	result, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)
	assert.Equal(t, TypePaid, result.License.Type)
}

func TestIssueFailsWithoutEligibleSubscription(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusPastDue, now)

	_, err := f.svc.Issue(context.Background(), "ten_1")
	assert.ErrorIs(t, err, ErrNoEligibleSub)
}

func TestIssueDoesNotRevokePriorLicenses(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusActive, now)

	first, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)
	second, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)
	assert.NotEqual(t, first.License.JTI, second.License.JTI)

	res, err := f.svc.Validate(context.Background(), first.License.JTI)
	require.NoError(t, err)
	assert.True(t, res.Valid, "older license stays valid until its own expiry")
}

func TestValidateUnknownJTI(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	result, err := f.svc.Validate(context.Background(), "nonexistent-jti")
	require.NoError(t, err, "unknown jti is not an error")
	assert.False(t, result.Valid)
	assert.Nil(t, result.License)
}

func TestValidateExpiryIsMonotonic(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusActive, now)

	issued, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)
	jti := issued.License.JTI

	// Past the 24h window: lazy expiry persists.
	f.svc.WithClock(fixedClock(now.Add(25 * time.Hour)))
	result, err := f.svc.Validate(context.Background(), jti)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	stored, err := f.store.GetByJTI(context.Background(), jti)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)

	// Even if the clock moved back, the persisted status keeps it invalid.
	f.svc.WithClock(fixedClock(now))
	result, err = f.svc.Validate(context.Background(), jti)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestCheckFeatureNormalizesValues(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusActive, now)
	f.plans.PutFeature(&plan.Feature{Code: "sso", Name: "Single Sign-On", ValueType: "boolean"})

	issued, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)
	jti := issued.License.JTI

	check, valid, err := f.svc.CheckFeature(context.Background(), jti, "api_access")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.True(t, check.Enabled, "boolean true")

	check, _, err = f.svc.CheckFeature(context.Background(), jti, "sso")
	require.NoError(t, err)
	assert.True(t, check.Enabled, `string "true"`)
	require.NotNil(t, check.Feature)
	assert.Equal(t, "Single Sign-On", check.Feature.Name)

	check, _, err = f.svc.CheckFeature(context.Background(), jti, "missing")
	require.NoError(t, err)
	assert.False(t, check.Enabled)
}

func TestCheckFeatureInvalidLicense(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	check, valid, err := f.svc.CheckFeature(context.Background(), "unknown", "api_access")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.False(t, check.Enabled)
}

func TestMarkPaidAndExpireForSubscription(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedSubscription(t, subscription.StatusTrialing, now)

	issued, err := f.svc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)

	newExpiry := now.AddDate(0, 0, 30)
	require.NoError(t, f.svc.MarkPaid(context.Background(), "sub_1", newExpiry))

	stored, err := f.store.GetByJTI(context.Background(), issued.License.JTI)
	require.NoError(t, err)
	assert.Equal(t, TypePaid, stored.Type)
	assert.Equal(t, StatusActive, stored.Status)
	assert.Equal(t, newExpiry, stored.ExpiresAt)

	require.NoError(t, f.svc.ExpireForSubscription(context.Background(), "sub_1"))
	stored, err = f.store.GetByJTI(context.Background(), issued.License.JTI)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}
