//go:build integration

package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/subgate/subgate/internal/testutil"
)

func seedSub(id, tenantID string, status Status, trialEnd *time.Time) *Subscription {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Subscription{
		ID:            id,
		TenantID:      tenantID,
		PlanID:        "plan_starter",
		ApplicationID: "app_1",
		Status:        status,
		PeriodStart:   now,
		PeriodEnd:     now.Add(30 * 24 * time.Hour),
		TrialEnd:      trialEnd,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgresSubscription_CreateAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := seedSub("sub_pg1", "ten_1", StatusTrialing, nil)
	sub.Metadata = map[string]string{"source": "signup"}
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "sub_pg1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TenantID != "ten_1" {
		t.Errorf("TenantID: got %s, want ten_1", got.TenantID)
	}
	if got.Status != StatusTrialing {
		t.Errorf("Status: got %s, want trialing", got.Status)
	}
	if got.Metadata["source"] != "signup" {
		t.Errorf("Metadata: got %v", got.Metadata)
	}
}

func TestPostgresSubscription_NotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)

	_, err := store.Get(context.Background(), "sub_missing")
	if !errors.Is(err, ErrSubNotFound) {
		t.Errorf("Expected ErrSubNotFound, got %v", err)
	}
}

func TestPostgresSubscription_VersionConflict(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := seedSub("sub_pg2", "ten_2", StatusTrialing, nil)
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	a, _ := store.Get(ctx, "sub_pg2")
	b, _ := store.Get(ctx, "sub_pg2")

	a.Status = StatusActive
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	b.Status = StatusCanceled
	if err := store.Update(ctx, b); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict for stale write, got %v", err)
	}

	got, _ := store.Get(ctx, "sub_pg2")
	if got.Status != StatusActive {
		t.Errorf("Status: got %s, want active (stale write must not land)", got.Status)
	}
	if got.Version != a.Version {
		t.Errorf("Version: got %d, want %d", got.Version, a.Version)
	}
}

func TestPostgresSubscription_GetCurrentByTenant(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	old := seedSub("sub_pg3a", "ten_3", StatusCanceled, nil)
	old.CreatedAt = old.CreatedAt.Add(-48 * time.Hour)
	current := seedSub("sub_pg3b", "ten_3", StatusActive, nil)

	for _, s := range []*Subscription{old, current} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create %s failed: %v", s.ID, err)
		}
	}

	got, err := store.GetCurrentByTenant(ctx, "ten_3")
	if err != nil {
		t.Fatalf("GetCurrentByTenant failed: %v", err)
	}
	if got.ID != "sub_pg3b" {
		t.Errorf("Expected current sub_pg3b, got %s", got.ID)
	}
}

func TestPostgresSubscription_ListTrialingExpired(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	subs := []*Subscription{
		seedSub("sub_pg4a", "ten_4a", StatusTrialing, &expired),
		seedSub("sub_pg4b", "ten_4b", StatusTrialing, &future),
		seedSub("sub_pg4c", "ten_4c", StatusActive, &expired),
	}
	for _, s := range subs {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create %s failed: %v", s.ID, err)
		}
	}

	due, err := store.ListTrialingExpired(ctx, now, 100)
	if err != nil {
		t.Fatalf("ListTrialingExpired failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("Expected 1 expired trial, got %d", len(due))
	}
	if due[0].ID != "sub_pg4a" {
		t.Errorf("Expected sub_pg4a, got %s", due[0].ID)
	}
}
