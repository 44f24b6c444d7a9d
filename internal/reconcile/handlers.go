package reconcile

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/subgate/subgate/internal/api"
	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/logging"
)

// signatureHeaders maps providers to the header carrying the delivery
// signature.
var signatureHeaders = map[string]string{
	"stripe":      "Stripe-Signature",
	"mercadopago": "x-signature",
	"dlocal":      "X-Dlocal-Signature",
}

// Handler receives provider webhooks.
type Handler struct {
	adapters  map[string]Adapter
	processor *Processor
	events    Store
}

// NewHandler creates a webhook handler over the given adapters.
func NewHandler(processor *Processor, events Store, adapters ...Adapter) *Handler {
	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Provider()] = a
	}
	return &Handler{adapters: byName, processor: processor, events: events}
}

// RegisterRoutes sets up webhook routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhook-handler/:provider", h.HandleWebhook)
}

// HandleWebhook handles POST /webhook-handler/:provider
func (h *Handler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")
	adapter, ok := h.adapters[provider]
	if !ok {
		api.Error(c, http.StatusNotFound, "unknown_provider", "unknown payment provider")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		api.Error(c, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	log := logging.L(c.Request.Context())

	ev, err := adapter.Parse(c.GetHeader(signatureHeaders[provider]), body)
	if err != nil {
		switch err {
		case ErrIgnoredEvent:
			// Acknowledge so the provider stops redelivering.
			api.OK(c, http.StatusOK, gin.H{"ignored": true})
		case ErrBadSignature:
			log.Warn("webhook signature verification failed", "provider", provider)
			api.Error(c, http.StatusUnauthorized, "bad_signature", "signature verification failed")
		default:
			// Keep the undecodable delivery for the audit trail.
			h.storeMalformed(c, provider, body, err)
			api.Error(c, http.StatusBadRequest, "invalid_payload", "malformed webhook payload")
		}
		return
	}

	outcome, err := h.processor.Process(c.Request.Context(), ev)
	if err != nil {
		log.Error("webhook processing failed",
			"provider", provider,
			"event_id", ev.EventID,
			"error", err)
		api.Error(c, http.StatusInternalServerError, "processing_failed", err.Error())
		return
	}

	api.OK(c, http.StatusOK, gin.H{"outcome": string(outcome)})
}

func (h *Handler) storeMalformed(c *gin.Context, provider string, body []byte, cause error) {
	_ = h.events.Create(c.Request.Context(), &WebhookEvent{
		ID:        idgen.WithPrefix("evt_"),
		Provider:  provider,
		EventID:   idgen.WithPrefix("malformed_"),
		Payload:   body,
		Error:     cause.Error(),
		CreatedAt: time.Now().UTC(),
	})
}
