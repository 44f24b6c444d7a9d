package reconcile

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeAdapter normalizes Stripe webhook deliveries. Signatures are
// verified with the endpoint's signing secret.
type StripeAdapter struct {
	signingSecret string
}

// NewStripeAdapter creates a Stripe webhook adapter.
func NewStripeAdapter(signingSecret string) *StripeAdapter {
	return &StripeAdapter{signingSecret: signingSecret}
}

func (a *StripeAdapter) Provider() string { return "stripe" }

func (a *StripeAdapter) Parse(signatureHeader string, body []byte) (*NormalizedEvent, error) {
	event, err := webhook.ConstructEvent(body, signatureHeader, a.signingSecret)
	if err != nil {
		return nil, ErrBadSignature
	}

	norm := &NormalizedEvent{
		Provider:  a.Provider(),
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   body,
	}

	switch string(event.Type) {
	case "invoice.payment_succeeded":
		var inv struct {
			Subscription  string `json:"subscription"`
			PaymentIntent string `json:"payment_intent"`
			AmountPaid    int64  `json:"amount_paid"`
			Currency      string `json:"currency"`
		}
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, ErrBadPayload
		}
		norm.Kind = KindSucceeded
		norm.ProviderSubscriptionID = inv.Subscription
		norm.ProviderTransactionID = inv.PaymentIntent
		norm.Amount = inv.AmountPaid
		norm.Currency = inv.Currency

	case "invoice.payment_failed":
		var inv struct {
			Subscription string `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, ErrBadPayload
		}
		norm.Kind = KindFailed
		norm.ProviderSubscriptionID = inv.Subscription
		norm.FailureReason = "invoice payment failed"

	case "customer.subscription.deleted":
		var sub struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, ErrBadPayload
		}
		norm.Kind = KindCanceled
		norm.ProviderSubscriptionID = sub.ID

	case "customer.subscription.paused":
		var sub struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, ErrBadPayload
		}
		norm.Kind = KindPaused
		norm.ProviderSubscriptionID = sub.ID

	default:
		return nil, ErrIgnoredEvent
	}

	return norm, nil
}

var _ Adapter = (*StripeAdapter)(nil)
