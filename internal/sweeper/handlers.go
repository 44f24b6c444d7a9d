package sweeper

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/logging"
)

// Handler exposes the sweep over HTTP for schedulers.
type Handler struct {
	svc *Service
}

// NewHandler creates a sweeper handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up sweeper routes on the admin group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/process-trial-transitions", h.ProcessTrialTransitions)
}

// ProcessTrialTransitions handles POST /process-trial-transitions
func (h *Handler) ProcessTrialTransitions(c *gin.Context) {
	report, err := h.svc.Run(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("trial sweep failed", "error", err)
		api.Error(c, http.StatusInternalServerError, "sweep_failed", err.Error())
		return
	}
	api.OK(c, http.StatusOK, report)
}
