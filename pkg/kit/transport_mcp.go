package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDecodeResult holds the decoded request.
type MCPDecodeResult struct {
	Request any
}

// RegisterMCPTool exposes an Endpoint as an MCP tool. Decode and endpoint
// errors become tool errors (IsError results), never protocol errors, so
// the client sees the message.
func RegisterMCPTool(srv *server.MCPServer, tool mcp.Tool, endpoint Endpoint, decode func(mcp.CallToolRequest) (*MCPDecodeResult, error)) {
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		ctx = WithTransport(ctx, "mcp")

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

// RequiredString returns a non-empty string argument.
func RequiredString(req mcp.CallToolRequest, name string) (string, error) {
	v, _ := req.GetArguments()[name].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
