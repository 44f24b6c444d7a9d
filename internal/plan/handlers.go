package plan

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
)

// Handler provides HTTP endpoints for the plan catalog.
type Handler struct {
	store Store
}

// NewHandler creates a new plan handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up public plan routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.ListPlans)
	r.GET("/plans/:id", h.GetPlan)
}

// ListPlans handles GET /plans — active plans sorted by price.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.store.ListActive(c.Request.Context())
	if err != nil {
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to list plans")
		return
	}
	if plans == nil {
		plans = []*Plan{}
	}
	api.OK(c, http.StatusOK, gin.H{"plans": plans, "count": len(plans)})
}

// GetPlan handles GET /plans/:id
func (h *Handler) GetPlan(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrPlanNotFound {
			api.Error(c, http.StatusNotFound, "not_found", "plan not found")
			return
		}
		api.Error(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	api.OK(c, http.StatusOK, gin.H{"plan": p})
}
