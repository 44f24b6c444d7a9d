package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// MercadoPagoAdapter normalizes MercadoPago webhook deliveries.
// When a secret is configured the x-signature header must carry a
// hex-encoded HMAC-SHA256 of the raw body.
type MercadoPagoAdapter struct {
	secret string
}

// NewMercadoPagoAdapter creates a MercadoPago webhook adapter.
func NewMercadoPagoAdapter(secret string) *MercadoPagoAdapter {
	return &MercadoPagoAdapter{secret: secret}
}

func (a *MercadoPagoAdapter) Provider() string { return "mercadopago" }

type mercadoPagoEvent struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Data   struct {
		ID             string `json:"id"`
		PreapprovalID  string `json:"preapproval_id"`
		TransactionAmt int64  `json:"transaction_amount"`
		CurrencyID     string `json:"currency_id"`
		StatusDetail   string `json:"status_detail"`
	} `json:"data"`
}

func (a *MercadoPagoAdapter) Parse(signatureHeader string, body []byte) (*NormalizedEvent, error) {
	if a.secret != "" && !verifyHMAC(a.secret, signatureHeader, body) {
		return nil, ErrBadSignature
	}

	var ev mercadoPagoEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.ID == "" {
		return nil, ErrBadPayload
	}

	norm := &NormalizedEvent{
		Provider:               a.Provider(),
		EventID:                ev.ID,
		EventType:              ev.Action,
		ProviderSubscriptionID: ev.Data.PreapprovalID,
		ProviderTransactionID:  ev.Data.ID,
		Amount:                 ev.Data.TransactionAmt,
		Currency:               ev.Data.CurrencyID,
		Payload:                body,
	}

	switch ev.Action {
	case "payment.approved":
		norm.Kind = KindSucceeded
	case "payment.rejected":
		norm.Kind = KindFailed
		norm.FailureReason = ev.Data.StatusDetail
	case "subscription_preapproval.cancelled":
		norm.Kind = KindCanceled
	case "subscription_preapproval.paused":
		norm.Kind = KindPaused
	default:
		return nil, ErrIgnoredEvent
	}

	return norm, nil
}

func verifyHMAC(secret, signature string, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

var _ Adapter = (*MercadoPagoAdapter)(nil)
