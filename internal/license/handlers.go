package license

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
)

// Handler provides HTTP endpoints for license issuance and validation.
type Handler struct {
	svc *Service
}

// NewHandler creates a new license handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up license routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/licenses/issue", h.IssueLicense)
	r.POST("/licenses/validate", h.ValidateLicense)
}

// RegisterProtectedRoutes sets up API-key-authenticated routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/check-feature", h.CheckFeature)
}

// IssueLicense handles POST /licenses/issue
func (h *Handler) IssueLicense(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", "tenant_id required")
		return
	}

	result, err := h.svc.Issue(c.Request.Context(), req.TenantID)
	if err != nil {
		if err == ErrNoEligibleSub {
			api.Error(c, http.StatusNotFound, "not_found", "no trialing or active subscription for tenant")
			return
		}
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue license")
		return
	}

	api.OK(c, http.StatusCreated, result)
}

// ValidateLicense handles POST /licenses/validate
func (h *Handler) ValidateLicense(c *gin.Context) {
	var req struct {
		JTI string `json:"jti" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", "jti required")
		return
	}

	result, err := h.svc.Validate(c.Request.Context(), req.JTI)
	if err != nil {
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to validate license")
		return
	}

	api.OK(c, http.StatusOK, result)
}

// CheckFeature handles GET /check-feature?jti=...&feature=...
func (h *Handler) CheckFeature(c *gin.Context) {
	jti := c.Query("jti")
	feature := c.Query("feature")
	if jti == "" || feature == "" {
		api.Error(c, http.StatusBadRequest, "invalid_request", "jti and feature query params required")
		return
	}

	check, valid, err := h.svc.CheckFeature(c.Request.Context(), jti, feature)
	if err != nil {
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to check feature")
		return
	}

	api.OK(c, http.StatusOK, gin.H{
		"enabled":      check.Enabled,
		"valid":        valid,
		"feature":      check.Feature,
		"value":        check.Value,
		"entitlements": check.Entitlements,
	})
}
