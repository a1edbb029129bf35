package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/meganet/portal/internal/flows"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes guided flow tools.
type Server struct {
	flows  *flows.Service
	engine *flows.Engine
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server over the flow authoring service and
// traversal engine.
func NewServer(svc *flows.Service, engine *flows.Engine) *Server {
	s := &Server{
		flows:  svc,
		engine: engine,
	}

	s.mcp = server.NewMCPServer(
		"portal",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(flowStartTool, s.handleFlowStart)
	s.mcp.AddTool(flowNextTool, s.handleFlowNext)
	s.mcp.AddTool(flowStepsTool, s.handleFlowSteps)
	s.mcp.AddTool(flowReportTool, s.handleFlowReport)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
