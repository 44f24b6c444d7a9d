package application

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

// Handler exposes application administration over HTTP.
type Handler struct {
	store Store
	keys  *auth.Manager
}

// NewHandler creates an application admin handler.
func NewHandler(store Store, keys *auth.Manager) *Handler {
	return &Handler{store: store, keys: keys}
}

// RegisterRoutes sets up application routes on the admin group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/applications", h.CreateApplication)
	r.GET("/applications", h.ListApplications)
	r.POST("/applications/:id/keys", h.CreateKey)
	r.DELETE("/applications/:id/keys/:key_id", h.RevokeKey)
}

type createApplicationRequest struct {
	ExternalID string `json:"external_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// CreateApplication handles POST /applications
//
// The response carries the application's first API key in plain text;
// it is shown exactly once and stored only as a hash.
func (h *Handler) CreateApplication(c *gin.Context) {
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	now := time.Now().UTC()
	app := &Application{
		ID:         idgen.WithPrefix("app_"),
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.store.Create(c.Request.Context(), app); err != nil {
		if errors.Is(err, ErrExternalIDUsed) {
			api.Error(c, http.StatusConflict, "external_id_used", "external id already registered")
			return
		}
		logging.L(c.Request.Context()).Error("failed to create application", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to create application")
		return
	}

	rawKey, _, err := h.keys.GenerateKey(c.Request.Context(), app.ID, "default")
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to generate api key", "application_id", app.ID, "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate api key")
		return
	}

	api.OK(c, http.StatusCreated, gin.H{
		"application": app,
		"api_key":     rawKey,
	})
}

// ListApplications handles GET /applications
func (h *Handler) ListApplications(c *gin.Context) {
	apps, err := h.store.List(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list applications", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to list applications")
		return
	}
	if apps == nil {
		apps = []*Application{}
	}
	api.OK(c, http.StatusOK, apps)
}

type createKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateKey handles POST /applications/:id/keys
func (h *Handler) CreateKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	app, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrAppNotFound) {
			api.Error(c, http.StatusNotFound, "application_not_found", "application not found")
			return
		}
		logging.L(c.Request.Context()).Error("application lookup failed", "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to load application")
		return
	}

	rawKey, key, err := h.keys.GenerateKey(c.Request.Context(), app.ID, req.Name)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to generate api key", "application_id", app.ID, "error", err)
		api.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate api key")
		return
	}

	api.OK(c, http.StatusCreated, gin.H{
		"api_key": rawKey,
		"key_id":  key.ID,
	})
}

// RevokeKey handles DELETE /applications/:id/keys/:key_id
func (h *Handler) RevokeKey(c *gin.Context) {
	if err := h.keys.RevokeKey(c.Request.Context(), c.Param("key_id"), c.Param("id")); err != nil {
		api.Error(c, http.StatusNotFound, "key_not_found", "api key not found")
		return
	}
	api.OK(c, http.StatusOK, gin.H{"revoked": true})
}
