package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Sentinel tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("sentinel", "1.0.0")
	client := NewSentinelClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListScenarios, h.HandleListScenarios)
	s.AddTool(ToolRunScenario, h.HandleRunScenario)
	s.AddTool(ToolGetAlerts, h.HandleGetAlerts)
	s.AddTool(ToolUpdateAlert, h.HandleUpdateAlert)
	s.AddTool(ToolCorrelate, h.HandleCorrelate)
	s.AddTool(ToolGetControls, h.HandleGetControls)
	s.AddTool(ToolToggleControl, h.HandleToggleControl)
	s.AddTool(ToolSimulateTransfer, h.HandleSimulateTransfer)
	s.AddTool(ToolDetectionStats, h.HandleDetectionStats)

	return s
}
