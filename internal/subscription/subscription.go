// Package subscription implements the subscription lifecycle state machine.
//
// A subscription is the central mutable entity: it binds a tenant to a
// plan over time and moves between trialing, active, past_due, paused
// and canceled. Transitions are driven by payment reconciliation
// (webhooks), the trial sweeper (time) and admin actions. Rows are
// never deleted; cancellation is a status change.
package subscription

import (
	"errors"
	"time"
)

// Errors
var (
	ErrSubNotFound       = errors.New("subscription: not found")
	ErrNoCurrentSub      = errors.New("subscription: tenant has no current subscription")
	ErrInvalidTransition = errors.New("subscription: transition not allowed")
	ErrVersionConflict   = errors.New("subscription: concurrent update conflict")
	ErrProviderSubSet    = errors.New("subscription: payment method already registered")
)

// Status represents a subscription's lifecycle state.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusPaused   Status = "paused"
)

// allowedTransitions is the state machine guard table. canceled is
// terminal; reactivation is modeled as a fresh subscription or an
// admin ForceStatus override.
var allowedTransitions = map[Status]map[Status]bool{
	StatusTrialing: {StatusActive: true, StatusPastDue: true, StatusPaused: true, StatusCanceled: true},
	StatusActive:   {StatusPastDue: true, StatusCanceled: true, StatusPaused: true},
	StatusPastDue:  {StatusActive: true, StatusPaused: true, StatusCanceled: true},
	StatusPaused:   {StatusActive: true, StatusCanceled: true},
	StatusCanceled: {},
}

// CanTransition reports whether the state machine allows moving from
// one status to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// MetaRequiresPaymentMethod is set on subscriptions that fell back to
// past_due at trial expiry because no payment mandate was on file.
const MetaRequiresPaymentMethod = "requires_payment_method"

// Subscription binds a tenant to a plan over time.
//
// PeriodEnd is the authoritative "service paid through" boundary and
// must stay monotonically non-decreasing across renewals. A non-empty
// ProviderSubscriptionID means a recurring-payment mandate exists at
// the provider; it is the sole signal the sweeper uses to pick
// auto-renewal over past_due fallback.
type Subscription struct {
	ID                     string            `json:"id"`
	TenantID               string            `json:"tenantId"`
	PlanID                 string            `json:"planId"`
	ApplicationID          string            `json:"applicationId"`
	Status                 Status            `json:"status"`
	PeriodStart            time.Time         `json:"periodStart"`
	PeriodEnd              time.Time         `json:"periodEnd"`
	TrialStart             *time.Time        `json:"trialStart,omitempty"`
	TrialEnd               *time.Time        `json:"trialEnd,omitempty"`
	PaymentProvider        string            `json:"paymentProvider,omitempty"`
	ProviderSubscriptionID string            `json:"providerSubscriptionId,omitempty"`
	ProviderCustomerID     string            `json:"providerCustomerId,omitempty"`
	CanceledAt             *time.Time        `json:"canceledAt,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	// Version guards concurrent writers: updates only apply when the
	// stored version matches, so a sweeper pass racing a webhook fails
	// loudly with ErrVersionConflict instead of silently losing writes.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InTrial reports whether the subscription is genuinely in trial at
// the given instant. A trialing status past TrialEnd is a transient
// state the sweeper resolves, not a steady state.
func (s *Subscription) InTrial(now time.Time) bool {
	return s.Status == StatusTrialing && s.TrialEnd != nil && !now.After(*s.TrialEnd)
}

// SetMeta sets a metadata flag, allocating the map on first use.
func (s *Subscription) SetMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata[key] = value
}

// LifecycleEvent describes a completed status transition. Outbound
// notification webhooks and the realtime stream consume these.
type LifecycleEvent struct {
	Type           string    `json:"type"` // subscription.<to-status>
	TenantID       string    `json:"tenantId"`
	SubscriptionID string    `json:"subscriptionId"`
	ApplicationID  string    `json:"applicationId"`
	PlanID         string    `json:"planId"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	At             time.Time `json:"at"`
}

// Publisher receives lifecycle events after a transition commits.
// Implementations must not block.
type Publisher interface {
	Publish(event LifecycleEvent)
}
