// Package mcpserver exposes the remediation engine over the Model
// Context Protocol so agents can scan, fix, and inspect rule
// performance without shelling out.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/mend/internal/service/remediation"
	"github.com/panbanda/mend/pkg/metrics"
	"github.com/panbanda/mend/pkg/qlearn"
)

// Server wraps the MCP server around shared remediation state. The
// scheduler table and metrics store live for the whole MCP session, so
// repeated fix calls keep learning and the metrics tool sees every run.
type Server struct {
	server *mcp.Server
	svc    *remediation.Service
	table  *qlearn.Table
	store  *metrics.Store
}

// NewServer creates an MCP server with every mend tool registered.
func NewServer(version string, opts ...remediation.Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mend",
			Version: version,
		},
		nil,
	)

	svc := remediation.New(opts...)
	s := &Server{
		server: server,
		svc:    svc,
		table:  svc.NewTable(),
		store:  metrics.NewStore(),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	// Detection without modification
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "scan",
		Description: describeScan(),
	}, s.handleScan)

	// Remediation, dry-run by default
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fix",
		Description: describeFix(),
	}, s.handleFix)

	// Rule catalog with enabled state
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: describeRules(),
	}, s.handleListRules)

	// Session metrics and learning trend
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_metrics",
		Description: describeMetrics(),
	}, s.handleGetMetrics)
}
