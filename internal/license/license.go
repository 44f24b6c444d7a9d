// Package license implements short-lived license token issuance and
// validation.
//
// Licenses carry a snapshot of the plan entitlements taken at issuance
// time; editing the plan catalog later never changes what an issued
// license grants. Clients refresh licenses frequently, so expiry is
// resolved lazily on validation instead of by a dedicated sweep.
package license

import (
	"errors"
	"time"

	"github.com/subgate/subgate/internal/plan"
)

// Errors
var (
	ErrLicenseNotFound = errors.New("license: not found")
	ErrNoEligibleSub   = errors.New("license: no trialing or active subscription")
)

// Type classifies how a license was granted.
type Type string

const (
	TypeTrial       Type = "trial"
	TypePaid        Type = "paid"
	TypeLifetime    Type = "lifetime"
	TypePromotional Type = "promotional"
)

// Status represents a license's state.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusRevoked   Status = "revoked"
	StatusSuspended Status = "suspended"
)

// License is a short-lived token gating feature access. JTI is the
// unique lookup key clients present on validation.
type License struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenantId"`
	SubscriptionID string            `json:"subscriptionId"`
	JTI            string            `json:"jti"`
	Type           Type              `json:"type"`
	Status         Status            `json:"status"`
	IssuedAt       time.Time         `json:"issuedAt"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	Entitlements   plan.Entitlements `json:"entitlements"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Resolve computes the effective state of a license at an instant.
// It is pure: the returned license reflects lazy expiry (active past
// its ExpiresAt flips to expired) and the caller persists the change.
// Expiry is one-way; a license resolved to expired never flips back.
func Resolve(l License, now time.Time) (License, bool) {
	if l.Status != StatusActive {
		return l, false
	}
	if now.After(l.ExpiresAt) {
		l.Status = StatusExpired
		return l, false
	}
	return l, true
}
