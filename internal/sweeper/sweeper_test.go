package sweeper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgate/subgate/internal/license"
	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/subscription"
)

type fixture struct {
	sweeper  *Service
	subs     *subscription.MemoryStore
	subSvc   *subscription.Service
	licSvc   *license.Service
	licenses *license.MemoryStore
	plans    *plan.MemoryStore
	clock    *time.Time
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	clock := start
	now := func() time.Time { return clock }

	plans := plan.NewMemoryStore()
	require.NoError(t, plans.Create(context.Background(), &plan.Plan{
		ID: "plan_starter", ApplicationID: "app_1", Name: "starter",
		Price: 2900, Currency: "USD", BillingCycle: plan.CycleMonthly,
		TrialDays: 14, IsActive: true,
		Entitlements: plan.Entitlements{MaxUsers: 5},
	}))

	subs := subscription.NewMemoryStore()
	subSvc := subscription.NewService(subs, plans, logger).WithClock(now)

	licenses := license.NewMemoryStore()
	licSvc := license.NewService(licenses, subs, plans, plans, 24*time.Hour, logger).WithClock(now)

	sw := NewService(subs, subSvc, licSvc, logger).WithClock(now)

	f := &fixture{
		sweeper: sw, subs: subs, subSvc: subSvc,
		licSvc: licSvc, licenses: licenses, plans: plans,
		clock: &clock,
	}
	return f
}

func (f *fixture) advanceTo(t time.Time) { *f.clock = t }

func (f *fixture) startTrial(t *testing.T, tenantID string) *subscription.Subscription {
	t.Helper()
	pl, err := f.plans.Get(context.Background(), "plan_starter")
	require.NoError(t, err)
	sub, err := f.subSvc.CreateTrial(context.Background(), tenantID, "app_1", pl)
	require.NoError(t, err)
	return sub
}

func TestRunExpiredTrialWithoutMandateGoesPastDue(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	sub := f.startTrial(t, "ten_1")

	issued, err := f.licSvc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)

	f.advanceTo(time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC))
	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.PastDue)
	assert.Zero(t, report.Failed)

	stored, err := f.subs.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, stored.Status)
	assert.Equal(t, "true", stored.Metadata[subscription.MetaRequiresPaymentMethod])

	lic, err := f.licenses.GetByJTI(context.Background(), issued.License.JTI)
	require.NoError(t, err)
	assert.Equal(t, license.StatusExpired, lic.Status)
}

func TestRunExpiredTrialWithMandateActivates(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.startTrial(t, "ten_1")

	_, err := f.subSvc.Upgrade(context.Background(), "ten_1", "plan_starter", "mercadopago", "mp_123", "cus_9")
	require.NoError(t, err)

	issued, err := f.licSvc.Issue(context.Background(), "ten_1")
	require.NoError(t, err)

	sweepAt := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	f.advanceTo(sweepAt)
	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Activated)

	stored, err := f.subs.GetCurrentByTenant(context.Background(), "ten_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, stored.Status)
	assert.Equal(t, sweepAt.AddDate(0, 0, 30), stored.PeriodEnd)

	// The trial license is carried into the paid period.
	lic, err := f.licenses.GetByJTI(context.Background(), issued.License.JTI)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, lic.Status)
	assert.Equal(t, license.TypePaid, lic.Type)
	assert.Equal(t, stored.PeriodEnd, lic.ExpiresAt)
}

func TestRunLeavesUnexpiredTrialsAlone(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	sub := f.startTrial(t, "ten_1")

	f.advanceTo(time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC))
	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)

	stored, err := f.subs.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrialing, stored.Status)
}

func TestRunIsIdempotent(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.startTrial(t, "ten_1")
	f.startTrial(t, "ten_2")

	f.advanceTo(time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC))
	first, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 2, first.PastDue)

	second, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Total, "resolved trials must not be picked up again")
}

func TestRunBatchesThroughLargeSets(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.sweeper.WithBatchSize(2)

	for _, tenant := range []string{"ten_1", "ten_2", "ten_3", "ten_4", "ten_5"} {
		f.startTrial(t, tenant)
	}

	f.advanceTo(time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC))
	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 5, report.PastDue)
	assert.Len(t, report.Details, 5)
}
