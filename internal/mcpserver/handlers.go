package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SubgateClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SubgateClient) *Handlers {
	return &Handlers{client: client}
}

// HandleListPlans returns the active plan catalog.
func (h *Handlers) HandleListPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListPlans(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list plans: %v", err)), nil
	}

	text, err := formatPlanList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse plans: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetTenant looks up a tenant by owner identity.
func (h *Handlers) HandleGetTenant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerUserID := req.GetString("owner_user_id", "")
	ownerEmail := req.GetString("owner_email", "")
	if ownerUserID == "" && ownerEmail == "" {
		return mcp.NewToolResultError("owner_user_id or owner_email is required"), nil
	}

	raw, err := h.client.GetTenant(ctx, ownerUserID, ownerEmail)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get tenant: %v", err)), nil
	}

	text, err := formatTenant(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tenant: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleValidateUser checks whether a user has access.
func (h *Handlers) HandleValidateUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	externalUserID := req.GetString("external_user_id", "")
	userEmail := req.GetString("user_email", "")
	if externalUserID == "" && userEmail == "" {
		return mcp.NewToolResultError("external_user_id or user_email is required"), nil
	}

	raw, err := h.client.ValidateUser(ctx, externalUserID, userEmail)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate user: %v", err)), nil
	}

	text, err := formatAccessResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse result: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleValidateLicense checks a license token.
func (h *Handlers) HandleValidateLicense(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jti := req.GetString("jti", "")
	if jti == "" {
		return mcp.NewToolResultError("jti is required"), nil
	}

	raw, err := h.client.ValidateLicense(ctx, jti)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate license: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleCheckFeature checks a feature grant on a license.
func (h *Handlers) HandleCheckFeature(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jti := req.GetString("jti", "")
	if jti == "" {
		return mcp.NewToolResultError("jti is required"), nil
	}
	feature := req.GetString("feature", "")
	if feature == "" {
		return mcp.NewToolResultError("feature is required"), nil
	}

	raw, err := h.client.CheckFeature(ctx, jti, feature)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check feature: %v", err)), nil
	}

	text, err := formatFeatureCheck(raw, feature)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse result: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleRecordUsage appends a usage record.
func (h *Handlers) HandleRecordUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID := req.GetString("tenant_id", "")
	if tenantID == "" {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}
	metric := req.GetString("metric", "")
	if metric == "" {
		return mcp.NewToolResultError("metric is required"), nil
	}
	value := req.GetFloat("value", 1)

	raw, err := h.client.RecordUsage(ctx, tenantID, metric, value)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to record usage: %v", err)), nil
	}

	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse record: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Usage recorded.\n  Record ID: %s\n  Tenant: %s\n  Metric: %s = %g",
		getString(record, "id"), tenantID, metric, value)), nil
}

// --- Formatting helpers ---

func formatPlanList(raw json.RawMessage) (string, error) {
	var plans []map[string]any
	if err := json.Unmarshal(raw, &plans); err != nil {
		return "", fmt.Errorf("unexpected plans response format")
	}
	if len(plans) == 0 {
		return "No active plans found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d plan(s):\n\n", len(plans))
	for i, p := range plans {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, getString(p, "name"), getString(p, "id"))
		if price, ok := getFloat(p, "price"); ok {
			fmt.Fprintf(&sb, "   Price: %.2f %s / %s\n",
				price/100, getString(p, "currency"), getString(p, "billingCycle"))
		}
		if trial, ok := getFloat(p, "trialDays"); ok && trial > 0 {
			fmt.Fprintf(&sb, "   Trial: %.0f days\n", trial)
		}
		if ent, ok := p["entitlements"].(map[string]any); ok {
			if features, ok := ent["features"].(map[string]any); ok && len(features) > 0 {
				keys := make([]string, 0, len(features))
				for k := range features {
					keys = append(keys, k)
				}
				fmt.Fprintf(&sb, "   Features: %s\n", strings.Join(keys, ", "))
			}
		}
		if i < len(plans)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatTenant(raw json.RawMessage) (string, error) {
	var resp struct {
		Tenant        map[string]any   `json:"tenant"`
		Subscriptions []map[string]any `json:"subscriptions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Tenant == nil {
		return "", fmt.Errorf("unexpected tenant response format")
	}

	var sb strings.Builder
	sb.WriteString("Tenant:\n")
	fmt.Fprintf(&sb, "  ID: %s\n", getString(resp.Tenant, "id"))
	fmt.Fprintf(&sb, "  Name: %s\n", getString(resp.Tenant, "name"))
	fmt.Fprintf(&sb, "  Status: %s\n", getString(resp.Tenant, "status"))
	fmt.Fprintf(&sb, "  Owner: %s\n", getString(resp.Tenant, "ownerEmail"))

	if len(resp.Subscriptions) > 0 {
		sb.WriteString("\nSubscriptions:\n")
		for _, s := range resp.Subscriptions {
			fmt.Fprintf(&sb, "  %s: %s plan=%s period ends %s\n",
				getString(s, "id"), getString(s, "status"),
				getString(s, "planId"), getString(s, "periodEnd"))
		}
	}
	return sb.String(), nil
}

func formatAccessResult(raw json.RawMessage) (string, error) {
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}

	hasAccess, _ := result["hasAccess"].(bool)

	var sb strings.Builder
	if hasAccess {
		sb.WriteString("Access: GRANTED\n")
	} else {
		sb.WriteString("Access: DENIED\n")
		if reason := getString(result, "reason"); reason != "" {
			fmt.Fprintf(&sb, "Reason: %s\n", reason)
		}
	}
	if tenant, ok := result["tenant"].(map[string]any); ok {
		fmt.Fprintf(&sb, "Tenant: %s (%s)\n", getString(tenant, "name"), getString(tenant, "id"))
	}
	if sub, ok := result["subscription"].(map[string]any); ok {
		fmt.Fprintf(&sb, "Subscription: %s (%s)\n", getString(sub, "id"), getString(sub, "status"))
	}
	if lic, ok := result["license"].(map[string]any); ok {
		fmt.Fprintf(&sb, "License: %s, expires %s\n", getString(lic, "jti"), getString(lic, "expiresAt"))
	}
	return sb.String(), nil
}

func formatFeatureCheck(raw json.RawMessage, feature string) (string, error) {
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}

	valid, _ := result["valid"].(bool)
	enabled, _ := result["enabled"].(bool)

	if !valid {
		return fmt.Sprintf("License is not valid; feature %q unavailable.", feature), nil
	}
	if enabled {
		return fmt.Sprintf("Feature %q is ENABLED.", feature), nil
	}
	text := fmt.Sprintf("Feature %q is DISABLED.", feature)
	if v := result["value"]; v != nil {
		text += fmt.Sprintf(" (value: %v)", v)
	}
	return text, nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
