// Package reconcile consumes payment-provider webhooks and drives
// subscription state from them.
//
// Every inbound webhook is persisted before any processing happens;
// failures are written back onto the stored event row and surfaced as
// 500 so the provider redelivers. Provider vocabularies are normalized
// by per-provider adapters into a small set of canonical effects.
package reconcile

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrEventNotFound = errors.New("reconcile: event not found")
	ErrIgnoredEvent  = errors.New("reconcile: event type not handled")
	ErrBadSignature  = errors.New("reconcile: signature verification failed")
	ErrBadPayload    = errors.New("reconcile: malformed payload")
)

// WebhookEvent is one persisted inbound webhook delivery. The
// (provider, event_id) pair is the idempotency key: a redelivered
// event that already processed successfully is skipped.
type WebhookEvent struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	Processed   bool            `json:"processed"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Kind is the canonical effect of a normalized payment event.
type Kind string

const (
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
	KindCanceled  Kind = "canceled"
	KindPaused    Kind = "paused"
)

// NormalizedEvent is the provider-independent form of a webhook.
// Reconciliation logic operates only on this type; provider naming
// never leaks past the adapters.
type NormalizedEvent struct {
	Provider               string
	EventID                string
	EventType              string // provider-native type, kept for the audit trail
	Kind                   Kind
	ProviderSubscriptionID string
	ProviderTransactionID  string
	Amount                 int64
	Currency               string
	FailureReason          string
	Payload                json.RawMessage
}

// Adapter converts one provider's webhook deliveries into normalized
// events. Parse returns ErrIgnoredEvent for event types that carry no
// subscription effect.
type Adapter interface {
	Provider() string
	Parse(signatureHeader string, body []byte) (*NormalizedEvent, error)
}
