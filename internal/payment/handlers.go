package payment

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/pagination"
	"github.com/subgate/subgate/internal/plan"
	"github.com/subgate/subgate/internal/subscription"
	"github.com/subgate/subgate/internal/tenant"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler provides HTTP endpoints for the payment ledger.
type Handler struct {
	svc     *Service
	subs    subscription.Store
	plans   plan.Store
	tenants tenant.Store
}

// NewHandler creates a new payment handler.
func NewHandler(svc *Service, subs subscription.Store, plans plan.Store, tenants tenant.Store) *Handler {
	return &Handler{svc: svc, subs: subs, plans: plans, tenants: tenants}
}

// RegisterAdminRoutes sets up admin-only payment routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/pending-payments", h.ListPendingPayments)
	r.POST("/payments/:id/complete", h.CompletePayment)
}

// ListPendingPayments handles GET /pending-payments with cursor pagination.
// Each row is expanded with its subscription, plan and tenant.
func (h *Handler) ListPendingPayments(c *gin.Context) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			api.Error(c, http.StatusBadRequest, "invalid_request", "limit must be 1-200")
			return
		}
		limit = n
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_cursor", "invalid cursor")
		return
	}

	payments, err := h.svc.Store().ListPending(c.Request.Context(), cursor, limit+1)
	if err != nil {
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to list pending payments")
		return
	}

	payments, nextCursor, hasMore := pagination.ComputePage(payments, limit,
		func(p *SubscriptionPayment) (time.Time, string) { return p.CreatedAt, p.ID })

	items := make([]gin.H, 0, len(payments))
	for _, p := range payments {
		item := gin.H{"payment": p}
		if sub, err := h.subs.Get(c.Request.Context(), p.SubscriptionID); err == nil {
			item["subscription"] = sub
		}
		if pl, err := h.plans.Get(c.Request.Context(), p.PlanID); err == nil {
			item["plan"] = pl
		}
		if t, err := h.tenants.Get(c.Request.Context(), p.TenantID); err == nil {
			item["tenant"] = t
		}
		items = append(items, item)
	}

	api.OK(c, http.StatusOK, gin.H{
		"payments":    items,
		"count":       len(items),
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

// CompletePayment handles POST /payments/:id/complete (admin).
// Repeated completion calls are idempotent.
func (h *Handler) CompletePayment(c *gin.Context) {
	var req struct {
		ProviderTransactionID string `json:"provider_transaction_id"`
	}
	_ = c.ShouldBindJSON(&req)

	pay, err := h.svc.Complete(c.Request.Context(), c.Param("id"), req.ProviderTransactionID)
	if err != nil {
		if err == ErrPaymentNotFound {
			api.Error(c, http.StatusNotFound, "not_found", "payment not found")
			return
		}
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to complete payment")
		return
	}

	api.OK(c, http.StatusOK, gin.H{"payment": pay})
}
