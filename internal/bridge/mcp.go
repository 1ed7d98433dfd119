package bridge

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"moxxy-bridge/internal/engine"
)

// actionDescriptions drive the MCP tool registry. One tool per action; all
// of them dispatch through the same serialized engine as HTTP callers.
var actionDescriptions = map[string]string{
	"navigate":   "Load a URL in the current tab and return a fresh accessibility snapshot. Args: url.",
	"snapshot":   "Return a fresh numbered accessibility snapshot of the current page.",
	"click":      "Click the element for a snapshot ref and return a fresh snapshot. Args: ref.",
	"type":       "Type text into the element for a snapshot ref. Args: ref, text.",
	"screenshot": "Capture the viewport to a temp file and return the path.",
	"scroll":     "Scroll the page (down/up/top/bottom) or scroll a ref into view. Args: direction or ref.",
	"evaluate":   "Run JavaScript in page context and return the serialized result. Args: script.",
	"back":       "Navigate back in history and return a fresh snapshot.",
	"forward":    "Navigate forward in history and return a fresh snapshot.",
	"tabs":       "List all tracked tabs, marking the current one.",
	"close":      "Close the current tab and switch to the most recent remaining tab.",
	"wait":       "Sleep for the given milliseconds, capped at 30000. Args: ms.",
}

// MCPServer exposes the bridge actions as MCP tools over stdio, for agent
// runtimes that speak MCP instead of the HTTP protocol.
type MCPServer struct {
	engine *engine.Engine
	outer  time.Duration
	srv    *mcpserver.MCPServer
}

func NewMCPServer(eng *engine.Engine, outer time.Duration) *MCPServer {
	srv := mcpserver.NewMCPServer(
		"moxxy-bridge",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s := &MCPServer{engine: eng, outer: outer, srv: srv}
	for _, action := range engine.Actions() {
		s.registerAction(action)
	}
	return s
}

// Start serves MCP over stdio until ctx is cancelled.
func (s *MCPServer) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.srv)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *MCPServer) registerAction(action string) {
	schema, err := json.Marshal(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"args": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Positional string arguments for the action",
			},
		},
	})
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	tool := mcp.NewToolWithRawSchema(action, actionDescriptions[action], schema)
	s.srv.AddTool(tool, s.wrapAction(action))
}

func (s *MCPServer) wrapAction(action string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args []string
		if raw, ok := request.GetArguments()["args"].([]interface{}); ok {
			for _, a := range raw {
				if str, ok := a.(string); ok {
					args = append(args, str)
				}
			}
		}

		if err := engine.Validate(action, args); err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(err.Error())},
				IsError: true,
			}, nil
		}

		submitCtx, cancel := context.WithTimeout(ctx, s.outer)
		defer cancel()

		resp, err := s.engine.Submit(submitCtx, action, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent("Execution error: " + err.Error())},
				IsError: true,
			}, nil
		}
		if !resp.Success {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(resp.Error)},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(resp.Result)},
			IsError: false,
		}, nil
	}
}
