// Package payment keeps the financial ledger: one row per billing
// attempt against a subscription. Rows are append-mostly; status moves
// forward (pending → completed/failed) and completed rows may later be
// refunded, but rows are never deleted.
package payment

import (
	"errors"
	"time"
)

// Errors
var (
	ErrPaymentNotFound = errors.New("payment: not found")
	ErrPendingExists   = errors.New("payment: subscription already has a pending payment")
)

// Status represents a payment's state.
type Status string

const (
	StatusPending           Status = "pending"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// SubscriptionPayment is one billing attempt.
type SubscriptionPayment struct {
	ID                    string     `json:"id"`
	SubscriptionID        string     `json:"subscriptionId"`
	TenantID              string     `json:"tenantId"`
	PlanID                string     `json:"planId"`
	Amount                int64      `json:"amount"` // minor units (cents)
	Currency              string     `json:"currency"`
	Status                Status     `json:"status"`
	PaymentProvider       string     `json:"paymentProvider,omitempty"`
	ProviderTransactionID string     `json:"providerTransactionId,omitempty"`
	PeriodStart           time.Time  `json:"periodStart"`
	PeriodEnd             time.Time  `json:"periodEnd"`
	PaidAt                *time.Time `json:"paidAt,omitempty"`
	FailedAt              *time.Time `json:"failedAt,omitempty"`
	FailureReason         string     `json:"failureReason,omitempty"`
	RefundAmount          int64      `json:"refundAmount,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}
