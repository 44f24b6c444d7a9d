package plan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingCycleDays(t *testing.T) {
	assert.Equal(t, 30, CycleMonthly.Days())
	assert.Equal(t, 365, CycleAnnual.Days())
}

func TestFeatureEnabled(t *testing.T) {
	e := Entitlements{Features: map[string]any{
		"api_access":  true,
		"sso":         "true",
		"audit_log":   "false",
		"whitelabel":  false,
		"max_reports": 50,
	}}

	assert.True(t, e.FeatureEnabled("api_access"))
	assert.True(t, e.FeatureEnabled("sso"))
	assert.False(t, e.FeatureEnabled("audit_log"))
	assert.False(t, e.FeatureEnabled("whitelabel"))
	assert.False(t, e.FeatureEnabled("max_reports"), "numeric values are not switches")
	assert.False(t, e.FeatureEnabled("missing"))
}

func TestCloneIsolation(t *testing.T) {
	orig := Entitlements{
		MaxUsers: 10,
		Features: map[string]any{"sso": true},
		Limits:   map[string]int64{"api_calls": 1000},
	}

	cp := orig.Clone()
	cp.Features["sso"] = false
	cp.Limits["api_calls"] = 5

	assert.Equal(t, true, orig.Features["sso"])
	assert.Equal(t, int64(1000), orig.Limits["api_calls"])
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	p := &Plan{
		ID:            "plan_basic",
		ApplicationID: "app_1",
		Name:          "basic",
		Price:         1500,
		Currency:      "USD",
		BillingCycle:  CycleMonthly,
		TrialDays:     14,
		Entitlements:  Entitlements{MaxUsers: 5, Features: map[string]any{"api_access": true}},
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Create(ctx, p))

	got, err := store.Get(ctx, "plan_basic")
	require.NoError(t, err)
	assert.Equal(t, "basic", got.Name)
	assert.Equal(t, 14, got.TrialDays)

	byName, err := store.GetByName(ctx, "app_1", "basic")
	require.NoError(t, err)
	assert.Equal(t, "plan_basic", byName.ID)

	_, err = store.Get(ctx, "plan_missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	dup := &Plan{ID: "plan_other", ApplicationID: "app_1", Name: "basic"}
	assert.ErrorIs(t, store.Create(ctx, dup), ErrNameTaken)
}

func TestMemoryStoreListActiveSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, p := range []*Plan{
		{ID: "plan_pro", ApplicationID: "app_1", Name: "pro", Price: 4900, IsActive: true},
		{ID: "plan_basic", ApplicationID: "app_1", Name: "basic", Price: 1500, IsActive: true},
		{ID: "plan_old", ApplicationID: "app_1", Name: "legacy", Price: 900, IsActive: false},
	} {
		require.NoError(t, store.Create(ctx, p))
	}

	plans, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "basic", plans[0].Name)
	assert.Equal(t, "pro", plans[1].Name)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, &Plan{
		ID: "plan_1", ApplicationID: "app_1", Name: "basic", IsActive: true,
		Entitlements: Entitlements{Features: map[string]any{"sso": true}},
	}))

	got, err := store.Get(ctx, "plan_1")
	require.NoError(t, err)
	got.Entitlements.Features["sso"] = false

	again, err := store.Get(ctx, "plan_1")
	require.NoError(t, err)
	assert.Equal(t, true, again.Entitlements.Features["sso"])
}

func TestMemoryStoreFeatureCatalog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutFeature(&Feature{Code: "api_access", Name: "API Access", ValueType: "boolean"})

	f, err := store.GetFeature(ctx, "api_access")
	require.NoError(t, err)
	assert.Equal(t, "API Access", f.Name)

	_, err = store.GetFeature(ctx, "missing")
	assert.ErrorIs(t, err, ErrFeatureNotFound)
}
