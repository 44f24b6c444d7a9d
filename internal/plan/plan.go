// Package plan provides the pricing plan catalog for the Subgate platform.
package plan

import (
	"errors"
	"time"
)

// Errors
var (
	ErrPlanNotFound    = errors.New("plan: not found")
	ErrPlanInactive    = errors.New("plan: not active")
	ErrNameTaken       = errors.New("plan: name already taken for application")
	ErrFeatureNotFound = errors.New("plan: feature not in catalog")
)

// BillingCycle is how often a plan renews.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// Days returns the flat length of one billing period in days.
// Periods are day counts, not calendar arithmetic.
func (c BillingCycle) Days() int {
	if c == CycleAnnual {
		return 365
	}
	return 30
}

// Valid reports whether the cycle is a known value.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleAnnual
}

// Entitlements describe what a plan grants. Feature values may be
// booleans or stringified booleans depending on how the plan was
// authored; consumers normalize via FeatureEnabled.
type Entitlements struct {
	MaxUsers int              `json:"maxUsers"`
	Features map[string]any   `json:"features"`
	Limits   map[string]int64 `json:"limits"`
}

// FeatureEnabled reports whether a feature value is truthy. Only
// boolean and "true"/"false" string values answer true; numeric or
// text values are metadata, not switches.
func (e Entitlements) FeatureEnabled(code string) bool {
	v, ok := e.Features[code]
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}

// Clone returns a deep copy of the entitlements. License issuance
// snapshots entitlements so later catalog edits never leak into
// already-issued licenses.
func (e Entitlements) Clone() Entitlements {
	cp := Entitlements{MaxUsers: e.MaxUsers}
	if e.Features != nil {
		cp.Features = make(map[string]any, len(e.Features))
		for k, v := range e.Features {
			cp.Features[k] = v
		}
	}
	if e.Limits != nil {
		cp.Limits = make(map[string]int64, len(e.Limits))
		for k, v := range e.Limits {
			cp.Limits[k] = v
		}
	}
	return cp
}

// Plan is a pricing plan within an application's catalog.
type Plan struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"applicationId"`
	Name          string       `json:"name"`
	Price         int64        `json:"price"` // minor units (cents)
	Currency      string       `json:"currency"`
	BillingCycle  BillingCycle `json:"billingCycle"`
	TrialDays     int          `json:"trialDays"`
	Entitlements  Entitlements `json:"entitlements"`
	IsActive      bool         `json:"isActive"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Feature is catalog metadata about a feature code: the human name
// and how to interpret the value stored in plan entitlements.
type Feature struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	ValueType string `json:"valueType"` // boolean, number, text
	Unit      string `json:"unit,omitempty"`
}
