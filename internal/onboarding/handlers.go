package onboarding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/application"
	"github.com/subgate/subgate/internal/logging"
	"github.com/subgate/subgate/internal/plan"
)

// Handler exposes tenant onboarding over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates an onboarding handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up onboarding routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.CreateTenant)
}

type createTenantRequest struct {
	ExternalAppID string `json:"external_app_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	OwnerUserID   string `json:"owner_user_id" binding:"required"`
	OwnerEmail    string `json:"owner_email" binding:"required"`
	Domain        string `json:"domain"`
	PlanName      string `json:"plan_name"`
}

// CreateTenant handles POST /tenants
func (h *Handler) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.svc.Onboard(c.Request.Context(), Params{
		ExternalAppID: req.ExternalAppID,
		Name:          req.Name,
		OwnerUserID:   req.OwnerUserID,
		OwnerEmail:    req.OwnerEmail,
		Domain:        req.Domain,
		PlanName:      req.PlanName,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidDomain):
			api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, application.ErrAppNotFound):
			api.Error(c, http.StatusNotFound, "application_not_found", "application not found")
		case errors.Is(err, plan.ErrPlanNotFound), errors.Is(err, ErrNoActivePlans):
			api.Error(c, http.StatusNotFound, "plan_not_found", "no matching active plan")
		case errors.Is(err, plan.ErrPlanInactive):
			api.Error(c, http.StatusBadRequest, "plan_inactive", "requested plan is not active")
		default:
			logging.L(c.Request.Context()).Error("onboarding failed", "error", err)
			api.Error(c, http.StatusInternalServerError, "internal_error", "failed to onboard tenant")
		}
		return
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	api.OK(c, status, result)
}
