package payment

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(now time.Time) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc := NewService(store, slog.New(slog.DiscardHandler)).
		WithClock(func() time.Time { return now })
	return svc, store
}

func params(subID string) RecordParams {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return RecordParams{
		SubscriptionID:  subID,
		TenantID:        "ten_1",
		PlanID:          "plan_basic",
		Amount:          1500,
		Currency:        "USD",
		PaymentProvider: "mercadopago",
		PeriodStart:     start,
		PeriodEnd:       start.AddDate(0, 0, 30),
	}
}

func TestSinglePendingInvariant(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)

	_, err := svc.RecordPending(context.Background(), params("sub_1"))
	require.NoError(t, err)

	_, err = svc.RecordPending(context.Background(), params("sub_1"))
	assert.ErrorIs(t, err, ErrPendingExists)

	// A different subscription is unaffected.
	_, err = svc.RecordPending(context.Background(), params("sub_2"))
	assert.NoError(t, err)
}

func TestCompleteIsIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, store := newTestService(now)

	pay, err := svc.RecordPending(context.Background(), params("sub_1"))
	require.NoError(t, err)

	first, err := svc.Complete(context.Background(), pay.ID, "txn_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, first.Status)
	require.NotNil(t, first.PaidAt)
	firstPaidAt := *first.PaidAt

	// Second completion re-reads the same row and changes nothing.
	svc.WithClock(func() time.Time { return now.Add(time.Hour) })
	second, err := svc.Complete(context.Background(), pay.ID, "txn_other")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, firstPaidAt, *second.PaidAt)
	assert.Equal(t, "txn_abc", second.ProviderTransactionID)

	stored, err := store.Get(context.Background(), pay.ID)
	require.NoError(t, err)
	assert.Equal(t, "txn_abc", stored.ProviderTransactionID)
}

func TestFailRecordsReason(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)

	pay, err := svc.RecordPending(context.Background(), params("sub_1"))
	require.NoError(t, err)

	failed, err := svc.Fail(context.Background(), pay.ID, "card_declined")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "card_declined", failed.FailureReason)
	require.NotNil(t, failed.FailedAt)

	// After a failure the subscription may retry with a new pending row.
	_, err = svc.RecordPending(context.Background(), params("sub_1"))
	assert.NoError(t, err)
}

func TestCompleteClearsFailureFields(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)

	pay, err := svc.RecordPending(context.Background(), params("sub_1"))
	require.NoError(t, err)
	_, err = svc.Fail(context.Background(), pay.ID, "card_declined")
	require.NoError(t, err)

	// A late success on a previously failed attempt settles it.
	completed, err := svc.Complete(context.Background(), pay.ID, "txn_retry")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Nil(t, completed.FailedAt)
	assert.Empty(t, completed.FailureReason)
}

func TestListPendingOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()

	for i := 0; i < 5; i++ {
		p := &SubscriptionPayment{
			ID:             "pay_" + string(rune('a'+i)),
			SubscriptionID: "sub_" + string(rune('a'+i)),
			Status:         StatusPending,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Create(ctx, p))
	}

	out, err := store.ListPending(ctx, nil, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "pay_a", out[0].ID)
	assert.Equal(t, "pay_c", out[2].ID)
}
