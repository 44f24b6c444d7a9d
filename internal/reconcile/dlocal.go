package reconcile

import "encoding/json"

// DLocalAdapter normalizes dLocal webhook deliveries. When a secret is
// configured the signature header must carry a hex-encoded HMAC-SHA256
// of the raw body.
type DLocalAdapter struct {
	secret string
}

// NewDLocalAdapter creates a dLocal webhook adapter.
func NewDLocalAdapter(secret string) *DLocalAdapter {
	return &DLocalAdapter{secret: secret}
}

func (a *DLocalAdapter) Provider() string { return "dlocal" }

type dlocalEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Payment struct {
		ID             string `json:"id"`
		SubscriptionID string `json:"subscription_id"`
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		StatusDetail   string `json:"status_detail"`
	} `json:"payment"`
}

func (a *DLocalAdapter) Parse(signatureHeader string, body []byte) (*NormalizedEvent, error) {
	if a.secret != "" && !verifyHMAC(a.secret, signatureHeader, body) {
		return nil, ErrBadSignature
	}

	var ev dlocalEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.ID == "" {
		return nil, ErrBadPayload
	}

	norm := &NormalizedEvent{
		Provider:               a.Provider(),
		EventID:                ev.ID,
		EventType:              ev.Type,
		ProviderSubscriptionID: ev.Payment.SubscriptionID,
		ProviderTransactionID:  ev.Payment.ID,
		Amount:                 ev.Payment.Amount,
		Currency:               ev.Payment.Currency,
		Payload:                body,
	}

	switch ev.Type {
	case "payment.success":
		norm.Kind = KindSucceeded
	case "payment.rejected":
		norm.Kind = KindFailed
		norm.FailureReason = ev.Payment.StatusDetail
	case "subscription.cancelled":
		norm.Kind = KindCanceled
	case "subscription.paused":
		norm.Kind = KindPaused
	default:
		return nil, ErrIgnoredEvent
	}

	return norm, nil
}

var _ Adapter = (*DLocalAdapter)(nil)
