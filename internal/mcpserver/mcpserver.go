// Package mcpserver exposes a tools.Registry over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/tools"
)

const Name = "llamabot"

// Invoker is the part of tools.Registry the handlers call.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

func New(registry *tools.Registry, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, tool := range registry.Tools() {
		s.AddTool(mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), tool.Schema()), Handler(registry, tool.Name(), logger))
	}
	return s
}

// Handler invokes one tool. Tool failures are reported in the result, not as
// protocol errors.
func Handler(invoker Invoker, name string, logger *zap.Logger) server.ToolHandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		result, err := invoker.Invoke(ctx, name, raw)
		if err != nil {
			if !errors.Is(err, tools.ErrInvalidArguments) {
				logger.Warn("mcp tool call failed", zap.String("tool", name), zap.Error(err))
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}
