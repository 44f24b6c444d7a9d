package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Subgate MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListPlans = mcp.NewTool("list_plans",
	mcp.WithDescription(
		"List the active pricing plans in the Subgate catalog. "+
			"Returns plan names, prices, billing cycles, trial length, and entitlements. "+
			"Use this before onboarding a tenant or changing plans."),
)

var ToolGetTenant = mcp.NewTool("get_tenant",
	mcp.WithDescription(
		"Look up a tenant and its subscription history by the owner's identity. "+
			"Provide either the owner's user id or email. "+
			"Returns the tenant record plus all subscriptions, newest first."),
	mcp.WithString("owner_user_id",
		mcp.Description("The owner's user id in your application (e.g. 'u_123')")),
	mcp.WithString("owner_email",
		mcp.Description("The owner's email address, used when no user id is available")),
)

var ToolValidateUser = mcp.NewTool("validate_user",
	mcp.WithDescription(
		"Check whether a user has access to your application. "+
			"Resolves the user to their tenant, current subscription, and license in one call. "+
			"Returns hasAccess plus a denial reason (suspended, past_due, no subscription) when access is refused."),
	mcp.WithString("external_user_id",
		mcp.Description("The user's id in your application")),
	mcp.WithString("user_email",
		mcp.Description("The user's email, used when no user id is available")),
)

var ToolValidateLicense = mcp.NewTool("validate_license",
	mcp.WithDescription(
		"Validate a license token by its JTI. "+
			"Returns whether the license is currently valid and its entitlement snapshot. "+
			"Expired or revoked licenses report valid=false rather than an error."),
	mcp.WithString("jti",
		mcp.Required(),
		mcp.Description("The license token identifier (e.g. 'lic_...')")),
)

var ToolCheckFeature = mcp.NewTool("check_feature",
	mcp.WithDescription(
		"Check whether a license grants a specific feature. "+
			"Returns enabled/disabled plus the raw entitlement value for limit-style features."),
	mcp.WithString("jti",
		mcp.Required(),
		mcp.Description("The license token identifier")),
	mcp.WithString("feature",
		mcp.Required(),
		mcp.Description("The feature code to check (e.g. 'api_access')")),
)

var ToolRecordUsage = mcp.NewTool("record_usage",
	mcp.WithDescription(
		"Record a metered usage event for a tenant. "+
			"Usage records are append-only and aggregated per metric for billing and limits."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("The tenant to attribute the usage to (e.g. 'ten_...')")),
	mcp.WithString("metric",
		mcp.Required(),
		mcp.Description("The metric name (e.g. 'api_calls', 'storage_bytes')")),
	mcp.WithNumber("value",
		mcp.Description("The amount to record (default 1)")),
)
