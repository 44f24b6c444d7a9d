// Package application provides the registry of external applications
// that integrate with Subgate.
package application

import (
	"errors"
	"time"
)

// Errors
var (
	ErrAppNotFound    = errors.New("application: not found")
	ErrExternalIDUsed = errors.New("application: external id already registered")
)

// Status represents an application's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Application is an external product that gates access through Subgate.
// Inbound API calls authenticate as an application via API key.
type Application struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"` // identifier the application uses for itself
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
