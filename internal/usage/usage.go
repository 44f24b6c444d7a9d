// Package usage records metered consumption per tenant.
package usage

import (
	"errors"
	"time"
)

// Errors
var (
	ErrRecordNotFound = errors.New("usage: record not found")
	ErrInvalidMetric  = errors.New("usage: invalid metric name")
	ErrInvalidValue   = errors.New("usage: value must be non-negative")
)

// Record is one metered usage sample reported by an application.
type Record struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenantId"`
	ApplicationID string            `json:"applicationId"`
	Metric        string            `json:"metric"`
	Value         float64           `json:"value"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RecordedAt    time.Time         `json:"recordedAt"`
}
