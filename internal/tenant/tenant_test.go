package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/subscription"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTenant(id, appID, ownerID, email string) *Tenant {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Tenant{
		ID:            id,
		ApplicationID: appID,
		Name:          "Acme",
		OwnerUserID:   ownerID,
		OwnerEmail:    email,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ---------------------------------------------------------------------------
// store tests
// ---------------------------------------------------------------------------

func TestMemoryStoreCreateAndLookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTenant("ten_1", "app_1", "u_1", "owner@acme.test")))

	byID, err := store.Get(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, "u_1", byID.OwnerUserID)

	byOwner, err := store.GetByAppOwner(ctx, "app_1", "u_1")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", byOwner.ID)

	// Email lookup is case-insensitive.
	byEmail, err := store.GetByAppEmail(ctx, "app_1", "OWNER@ACME.TEST")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", byEmail.ID)
}

func TestMemoryStoreDuplicateOwner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTenant("ten_1", "app_1", "u_1", "a@acme.test")))

	err := store.Create(ctx, newTenant("ten_2", "app_1", "u_1", "b@acme.test"))
	assert.ErrorIs(t, err, ErrTenantExists)

	// Same owner under a different application is a separate tenant.
	require.NoError(t, store.Create(ctx, newTenant("ten_3", "app_2", "u_1", "a@acme.test")))
}

func TestMemoryStoreScopesLookupsByApplication(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTenant("ten_1", "app_1", "u_1", "owner@acme.test")))

	_, err := store.GetByAppOwner(ctx, "app_other", "u_1")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = store.GetByAppEmail(ctx, "app_other", "owner@acme.test")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ten := newTenant("ten_1", "app_1", "u_1", "owner@acme.test")
	require.NoError(t, store.Create(ctx, ten))

	ten.Status = StatusSuspended
	require.NoError(t, store.Update(ctx, ten))

	got, err := store.Get(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, got.Status)

	assert.ErrorIs(t, store.Update(ctx, newTenant("ten_missing", "app_1", "u_9", "x@y.test")), ErrTenantNotFound)
}

func TestMemoryStoreSnapshotRestore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTenant("ten_1", "app_1", "u_1", "owner@acme.test")))
	snap := store.Snapshot()

	require.NoError(t, store.Create(ctx, newTenant("ten_2", "app_1", "u_2", "two@acme.test")))
	store.Restore(snap)

	_, err := store.Get(ctx, "ten_2")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	// The owner index must roll back with the rows.
	require.NoError(t, store.Create(ctx, newTenant("ten_2b", "app_1", "u_2", "two@acme.test")))
}

// ---------------------------------------------------------------------------
// handler tests
// ---------------------------------------------------------------------------

func handlerFixture(t *testing.T) (*gin.Engine, Store) {
	t.Helper()

	apps := application.NewMemoryStore()
	require.NoError(t, apps.Create(context.Background(), &application.Application{
		ID: "app_1", ExternalID: "myapp", Name: "My App", Status: application.StatusActive,
	}))

	tenants := NewMemoryStore()
	subs := subscription.NewMemoryStore()

	r := gin.New()
	NewHandler(apps, tenants, subs).RegisterRoutes(r.Group("/v1"))
	return r, tenants
}

func TestGetTenantRequiresOwnerParam(t *testing.T) {
	r, _ := handlerFixture(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/myapp", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTenantUnknownApplication(t *testing.T) {
	r, _ := handlerFixture(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/ghost?owner_user_id=u_1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTenantByOwnerID(t *testing.T) {
	r, tenants := handlerFixture(t)
	require.NoError(t, tenants.Create(context.Background(), newTenant("ten_1", "app_1", "u_1", "owner@acme.test")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/myapp?owner_user_id=u_1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Tenant        Tenant                       `json:"tenant"`
			Subscriptions []*subscription.Subscription `json:"subscriptions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ten_1", resp.Data.Tenant.ID)
}

func TestGetTenantByEmail(t *testing.T) {
	r, tenants := handlerFixture(t)
	require.NoError(t, tenants.Create(context.Background(), newTenant("ten_1", "app_1", "u_1", "owner@acme.test")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/myapp?owner_email=owner%40acme.test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
