// Package api provides the uniform response envelope for all HTTP endpoints.
//
// Every endpoint replies with {"success": true, "data": ...} or
// {"success": false, "error": ..., "message": ...}. Callers are expected to
// check the envelope rather than rely on the HTTP status alone.
package api

import (
	"github.com/gin-gonic/gin"
)

// OK writes a success envelope with the given status and payload.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// Error writes a failure envelope. code is a stable machine-readable
// identifier (e.g. "not_found"); message is human-readable.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"success": false, "error": code, "message": message})
}

// AbortError writes a failure envelope and aborts the handler chain.
// Used by middleware.
func AbortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": code, "message": message})
}
