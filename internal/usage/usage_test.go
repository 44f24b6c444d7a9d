package usage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgate/subgate/internal/tenant"
)

func newService(t *testing.T, now time.Time) (*Service, *MemoryStore) {
	t.Helper()
	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Create(context.Background(), &tenant.Tenant{
		ID: "ten_1", ApplicationID: "app_1", Name: "Acme",
		OwnerUserID: "u1", OwnerEmail: "owner@acme.test", Status: tenant.StatusActive,
	}))

	store := NewMemoryStore()
	svc := NewService(store, tenants, slog.New(slog.DiscardHandler)).
		WithClock(func() time.Time { return now })
	return svc, store
}

func TestRecord(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newService(t, now)

	r, err := svc.Record(context.Background(), "app_1", RecordParams{
		TenantID: "ten_1",
		Metric:   "api_calls",
		Value:    42,
		Metadata: map[string]string{"region": "us-east-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, now, r.RecordedAt)
	assert.Equal(t, "app_1", r.ApplicationID)

	stored, err := store.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, stored.Value)
	assert.Equal(t, "us-east-1", stored.Metadata["region"])
}

func TestRecordRejectsBadInput(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	_, err := svc.Record(context.Background(), "app_1", RecordParams{
		TenantID: "ten_1", Metric: "Not A Metric!", Value: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidMetric)

	_, err = svc.Record(context.Background(), "app_1", RecordParams{
		TenantID: "ten_1", Metric: "api_calls", Value: -1,
	})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.Record(context.Background(), "app_1", RecordParams{
		TenantID: "ten_missing", Metric: "api_calls", Value: 1,
	})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestRecordRejectsForeignTenant(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	// Authenticated as a different application than the tenant's owner.
	_, err := svc.Record(context.Background(), "app_other", RecordParams{
		TenantID: "ten_1", Metric: "api_calls", Value: 1,
	})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestSumByTenantMetric(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newService(t, now)

	for _, v := range []float64{10, 20, 30} {
		_, err := svc.Record(context.Background(), "app_1", RecordParams{
			TenantID: "ten_1", Metric: "api_calls", Value: v,
		})
		require.NoError(t, err)
	}
	_, err := svc.Record(context.Background(), "app_1", RecordParams{
		TenantID: "ten_1", Metric: "storage_bytes", Value: 999,
	})
	require.NoError(t, err)

	total, err := store.SumByTenantMetric(context.Background(), "ten_1", "api_calls",
		now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 60.0, total)
}
