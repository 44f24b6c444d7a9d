// Package validation provides input validation helpers for the Subgate API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

var (
	// emailRegex is a pragmatic email shape check, not full RFC 5322.
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// metricRegex validates usage metric names (e.g. "api_calls", "seats.active")
	metricRegex = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)
	// domainRegex validates bare DNS names (no scheme, no path)
	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEmail checks if a string looks like an email address
func IsValidEmail(s string) bool {
	return len(s) <= 254 && emailRegex.MatchString(s)
}

// IsValidMetric checks if a string is a valid usage metric name
func IsValidMetric(s string) bool {
	return metricRegex.MatchString(s)
}

// IsValidDomain checks if a string is a bare DNS domain name
func IsValidDomain(s string) bool {
	return len(s) <= 253 && domainRegex.MatchString(strings.ToLower(s))
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// SanitizeEmail normalizes an email address for lookups
func SanitizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
