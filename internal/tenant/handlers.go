package tenant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/logging"
	"github.com/subgate/subgate/internal/subscription"
)

// Handler exposes tenant lookups over HTTP.
type Handler struct {
	apps    application.Store
	tenants Store
	subs    subscription.Store
}

// NewHandler creates a tenant handler.
func NewHandler(apps application.Store, tenants Store, subs subscription.Store) *Handler {
	return &Handler{apps: apps, tenants: tenants, subs: subs}
}

// RegisterRoutes sets up tenant routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:external_app_id", h.GetTenant)
}

// GetTenant handles GET /tenants/:external_app_id
//
// The tenant is addressed by the owning application plus either
// owner_user_id or owner_email as a query parameter. The response
// nests the tenant's subscriptions, newest first.
func (h *Handler) GetTenant(c *gin.Context) {
	ownerUserID := c.Query("owner_user_id")
	ownerEmail := c.Query("owner_email")
	if ownerUserID == "" && ownerEmail == "" {
		api.Error(c, http.StatusBadRequest, "invalid_request", "owner_user_id or owner_email query parameter required")
		return
	}

	app, err := h.apps.GetByExternalID(c.Request.Context(), c.Param("external_app_id"))
	if err != nil {
		if errors.Is(err, application.ErrAppNotFound) {
			api.Error(c, http.StatusNotFound, "application_not_found", "application not found")
			return
		}
		logging.L(c.Request.Context()).Error("application lookup failed", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to load application")
		return
	}

	var ten *Tenant
	if ownerUserID != "" {
		ten, err = h.tenants.GetByAppOwner(c.Request.Context(), app.ID, ownerUserID)
	} else {
		ten, err = h.tenants.GetByAppEmail(c.Request.Context(), app.ID, ownerEmail)
	}
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			api.Error(c, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		logging.L(c.Request.Context()).Error("tenant lookup failed", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to load tenant")
		return
	}

	subs, err := h.subs.ListByTenant(c.Request.Context(), ten.ID)
	if err != nil {
		logging.L(c.Request.Context()).Error("subscription lookup failed", "tenant_id", ten.ID, "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to load subscriptions")
		return
	}

	api.OK(c, http.StatusOK, gin.H{
		"tenant":        ten,
		"subscriptions": subs,
	})
}
