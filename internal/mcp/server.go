// Package mcp exposes cleanroom's knowledge, diagram and news lookups as
// Model Context Protocol tools so AI agents can cite the same sources as
// the training app.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/feeds"
	"github.com/annexlab/cleanroom/internal/knowledge"
)

// Deps are the services backing the tools. Any of them may be nil; the
// matching tools then report themselves unavailable.
type Deps struct {
	Asker   *knowledge.Asker
	Index   *knowledge.Index
	Catalog *diagram.Catalog
	Feeds   *feeds.Service
}

// Server wraps an MCP server that exposes cleanroom tools.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(deps Deps, version string) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"cleanroom",
		version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askSourcesTool, s.handleAskSources)
	s.mcp.AddTool(searchKnowledgeTool, s.handleSearchKnowledge)
	s.mcp.AddTool(listDiagramsTool, s.handleListDiagrams)
	s.mcp.AddTool(describeHotspotTool, s.handleDescribeHotspot)
	s.mcp.AddTool(renderDiagramTool, s.handleRenderDiagram)
	s.mcp.AddTool(latestNewsTool, s.handleLatestNews)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
