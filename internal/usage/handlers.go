package usage

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/auth"
	"github.com/subgate/subgate/internal/logging"
	"github.com/subgate/subgate/internal/tenant"
)

// Handler exposes usage recording over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a usage handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up usage routes on the API-key protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/record-usage", h.RecordUsage)
}

type recordUsageRequest struct {
	TenantID string            `json:"tenant_id" binding:"required"`
	Metric   string            `json:"metric" binding:"required"`
	Value    float64           `json:"value"`
	Metadata map[string]string `json:"metadata"`
}

// RecordUsage handles POST /record-usage
func (h *Handler) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	record, err := h.svc.Record(c.Request.Context(), auth.GetApplicationID(c), RecordParams{
		TenantID: req.TenantID,
		Metric:   req.Metric,
		Value:    req.Value,
		Metadata: req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMetric), errors.Is(err, ErrInvalidValue):
			api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, tenant.ErrTenantNotFound):
			api.Error(c, http.StatusNotFound, "tenant_not_found", "tenant not found")
		default:
			logging.L(c.Request.Context()).Error("failed to record usage", "error", err)
			api.Error(c, http.StatusInternalServerError, "internal_error", "failed to record usage")
		}
		return
	}

	api.OK(c, http.StatusCreated, record)
}
