package subscription

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/plan"
)

// Handler provides HTTP endpoints for subscription management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new subscription handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up application-facing subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/subscriptions/upgrade", h.Upgrade)
}

// RegisterAdminRoutes sets up admin-only subscription routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/subscriptions/:id", h.GetSubscription)
	r.POST("/subscriptions/:id/change-plan", h.ChangePlan)
	r.POST("/subscriptions/:id/force-status", h.ForceStatus)
}

// Upgrade handles PUT /subscriptions/upgrade
func (h *Handler) Upgrade(c *gin.Context) {
	var req struct {
		TenantID               string `json:"tenant_id" binding:"required"`
		PlanID                 string `json:"plan_id"`
		PaymentProvider        string `json:"payment_provider"`
		ProviderSubscriptionID string `json:"provider_subscription_id"`
		ProviderCustomerID     string `json:"provider_customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", "tenant_id required")
		return
	}

	sub, err := h.svc.Upgrade(c.Request.Context(), req.TenantID, req.PlanID,
		req.PaymentProvider, req.ProviderSubscriptionID, req.ProviderCustomerID)
	if err != nil {
		switch err {
		case ErrNoCurrentSub:
			api.Error(c, http.StatusNotFound, "not_found", "tenant has no current subscription")
		case plan.ErrPlanNotFound:
			api.Error(c, http.StatusNotFound, "not_found", "plan not found")
		case plan.ErrPlanInactive:
			api.Error(c, http.StatusBadRequest, "plan_inactive", "plan is not active")
		case ErrProviderSubSet:
			api.Error(c, http.StatusBadRequest, "conflict", "subscription already has a payment method registered")
		case ErrVersionConflict:
			api.Error(c, http.StatusConflict, "conflict", "subscription was modified concurrently, retry")
		default:
			api.Error(c, http.StatusInternalServerError, "internal_error", "failed to upgrade subscription")
		}
		return
	}

	api.OK(c, http.StatusOK, gin.H{"subscription": sub})
}

// GetSubscription handles GET /subscriptions/:id (admin).
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrSubNotFound {
			api.Error(c, http.StatusNotFound, "not_found", "subscription not found")
			return
		}
		api.Error(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	api.OK(c, http.StatusOK, gin.H{"subscription": sub})
}

// ChangePlan handles POST /subscriptions/:id/change-plan (admin).
// The billing period restarts; no proration is applied.
func (h *Handler) ChangePlan(c *gin.Context) {
	var req struct {
		PlanID string `json:"plan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", "plan_id required")
		return
	}

	sub, err := h.svc.ChangePlan(c.Request.Context(), c.Param("id"), req.PlanID)
	if err != nil {
		switch err {
		case ErrSubNotFound:
			api.Error(c, http.StatusNotFound, "not_found", "subscription not found")
		case plan.ErrPlanNotFound:
			api.Error(c, http.StatusNotFound, "not_found", "plan not found")
		case plan.ErrPlanInactive:
			api.Error(c, http.StatusBadRequest, "plan_inactive", "plan is not active")
		case ErrVersionConflict:
			api.Error(c, http.StatusConflict, "conflict", "subscription was modified concurrently, retry")
		default:
			api.Error(c, http.StatusInternalServerError, "internal_error", "failed to change plan")
		}
		return
	}

	api.OK(c, http.StatusOK, gin.H{"subscription": sub})
}

// ForceStatus handles POST /subscriptions/:id/force-status (admin).
// Bypasses the transition guards.
func (h *Handler) ForceStatus(c *gin.Context) {
	var req struct {
		Status Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", "status required")
		return
	}

	switch req.Status {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusPaused:
	default:
		api.Error(c, http.StatusBadRequest, "invalid_status", "unknown status")
		return
	}

	sub, err := h.svc.ForceStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		if err == ErrSubNotFound {
			api.Error(c, http.StatusNotFound, "not_found", "subscription not found")
			return
		}
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to force status")
		return
	}

	api.OK(c, http.StatusOK, gin.H{"subscription": sub})
}
