package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/logging"
)

// Handler exposes access validation over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates an access handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up access routes on the API-key protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/validate-user", h.ValidateUser)
}

type validateUserRequest struct {
	ExternalAppID  string `json:"external_app_id" binding:"required"`
	ExternalUserID string `json:"external_user_id"`
	UserEmail      string `json:"user_email"`
}

// ValidateUser handles POST /validate-user
func (h *Handler) ValidateUser(c *gin.Context) {
	var req validateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.svc.ValidateUser(c.Request.Context(), ValidateParams{
		ExternalAppID:  req.ExternalAppID,
		ExternalUserID: req.ExternalUserID,
		UserEmail:      req.UserEmail,
	})
	if err != nil {
		if errors.Is(err, ErrMissingUserIdentifier) {
			api.Error(c, http.StatusBadRequest, "invalid_request", "external_user_id or user_email required")
			return
		}
		logging.L(c.Request.Context()).Error("access validation failed", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to validate access")
		return
	}

	api.OK(c, http.StatusOK, result)
}
