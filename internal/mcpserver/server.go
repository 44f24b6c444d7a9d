package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Subgate tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("subgate", "1.0.0")
	client := NewSubgateClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListPlans, h.HandleListPlans)
	s.AddTool(ToolGetTenant, h.HandleGetTenant)
	s.AddTool(ToolValidateUser, h.HandleValidateUser)
	s.AddTool(ToolValidateLicense, h.HandleValidateLicense)
	s.AddTool(ToolCheckFeature, h.HandleCheckFeature)
	s.AddTool(ToolRecordUsage, h.HandleRecordUsage)

	return s
}
