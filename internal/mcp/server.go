// Package mcp exposes read-only signalgate tools to agents over the Model
// Context Protocol.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/signalgate/internal/layout"
)

// Config holds MCP server configuration.
type Config struct {
	Paths   layout.Paths
	Version string
	Logger  *slog.Logger
}

// Server wraps the MCP SDK server. Every tool reads configs and state fresh
// on each call, so edits to bets.yaml or rules.yaml apply without restart.
// No tool writes state.
type Server struct {
	mcpServer *mcpsdk.Server
	paths     layout.Paths
	logger    *slog.Logger
}

// New creates an MCP server with all tools registered.
func New(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{paths: cfg.Paths, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "signalgate",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "signalgate_evaluate",
		Description: "Classify an event against the current bets and rules without recording anything (dry-run). Returns the three-question decision, entity, action and preview text.",
	}, s.handleEvaluate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "signalgate_gate_status",
		Description: "Show the circuit breaker state: tripped flag, burst count and window.",
	}, s.handleGateStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "signalgate_audit_count",
		Description: "Count interrupts recorded in the audit log.",
	}, s.handleAuditCount)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "signalgate_audit_tail",
		Description: "Return the most recent interrupt records from the audit log.",
	}, s.handleAuditTail)
}
