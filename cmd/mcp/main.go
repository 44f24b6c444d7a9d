// Subgate MCP Server - Exposes Subgate capabilities as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/subgate/subgate/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:        envOrDefault("SUBGATE_API_URL", "http://localhost:8080"),
		APIKey:        os.Getenv("SUBGATE_API_KEY"),
		ExternalAppID: os.Getenv("SUBGATE_EXTERNAL_APP_ID"),
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "SUBGATE_API_KEY is required")
		os.Exit(1)
	}
	if cfg.ExternalAppID == "" {
		fmt.Fprintln(os.Stderr, "SUBGATE_EXTERNAL_APP_ID is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
