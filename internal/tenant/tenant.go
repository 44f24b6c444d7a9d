// Package tenant provides the customer organization registry for Subgate.
package tenant

import (
	"errors"
	"time"
)

// Errors
var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrTenantExists   = errors.New("tenant: already exists for application and owner")
)

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCanceled  Status = "canceled"
)

// Tenant represents a customer organization. Exactly one tenant exists
// per (application, owner) pair; onboarding is idempotent on that key.
type Tenant struct {
	ID               string    `json:"id"`
	ApplicationID    string    `json:"applicationId"`
	Name             string    `json:"name"`
	OrganizationName string    `json:"organizationName,omitempty"`
	OwnerUserID      string    `json:"ownerUserId"`
	OwnerEmail       string    `json:"ownerEmail"`
	BillingEmail     string    `json:"billingEmail,omitempty"`
	Domain           string    `json:"domain,omitempty"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
