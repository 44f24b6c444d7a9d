package notify

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/auth"
	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/logging"
)

// Handler manages an application's notification endpoints.
type Handler struct {
	store Store
}

// NewHandler creates a notification endpoint handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up endpoint routes on the API-key protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notification-endpoints", h.CreateEndpoint)
	r.GET("/notification-endpoints", h.ListEndpoints)
	r.DELETE("/notification-endpoints/:id", h.DeleteEndpoint)
}

type createEndpointRequest struct {
	URL        string   `json:"url" binding:"required,url"`
	Secret     string   `json:"secret"`
	EventTypes []string `json:"event_types"`
}

// CreateEndpoint handles POST /notification-endpoints
func (h *Handler) CreateEndpoint(c *gin.Context) {
	var req createEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ep := &Endpoint{
		ID:            idgen.WithPrefix("nep_"),
		ApplicationID: auth.GetApplicationID(c),
		URL:           req.URL,
		Secret:        req.Secret,
		EventTypes:    req.EventTypes,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.store.Create(c.Request.Context(), ep); err != nil {
		logging.L(c.Request.Context()).Error("failed to create endpoint", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to create endpoint")
		return
	}

	api.OK(c, http.StatusCreated, ep)
}

// ListEndpoints handles GET /notification-endpoints
func (h *Handler) ListEndpoints(c *gin.Context) {
	endpoints, err := h.store.ListByApplication(c.Request.Context(), auth.GetApplicationID(c))
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list endpoints", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to list endpoints")
		return
	}
	if endpoints == nil {
		endpoints = []*Endpoint{}
	}
	api.OK(c, http.StatusOK, endpoints)
}

// DeleteEndpoint handles DELETE /notification-endpoints/:id
func (h *Handler) DeleteEndpoint(c *gin.Context) {
	ep, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil || ep.ApplicationID != auth.GetApplicationID(c) {
		api.Error(c, http.StatusNotFound, "endpoint_not_found", "endpoint not found")
		return
	}
	if err := h.store.Delete(c.Request.Context(), ep.ID); err != nil {
		if errors.Is(err, ErrEndpointNotFound) {
			api.Error(c, http.StatusNotFound, "endpoint_not_found", "endpoint not found")
			return
		}
		logging.L(c.Request.Context()).Error("failed to delete endpoint", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete endpoint")
		return
	}
	api.OK(c, http.StatusOK, gin.H{"deleted": true})
}
