package api

import (
	"github.com/hazyhaar/shelfmark/pkg/kit"
	"github.com/hazyhaar/shelfmark/pkg/locator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the shelfmark MCP tools on the server.
// locate_book is only registered when the service has a store or locator.
func RegisterMCPTools(srv *server.MCPServer, svc Service) {
	p := svc.parser()
	registerParseCode(srv, svc.wrap("parse", parseEndpoint(p)))
	registerCompareCodes(srv, svc.wrap("compare", compareEndpoint(p)))
	if svc.Store != nil || svc.Locator != nil {
		registerLocateBook(srv, svc.wrap("locate", locateEndpoint(p, svc.Locator, svc.Store)))
	}
}

func registerParseCode(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("parse_code",
		mcp.WithDescription("Parse a library call number (Dewey or country-prefixed Latin-American) into its fields and 22-character comparable key."),
		mcp.WithString("code", mcp.Required(), mcp.Description("The call number, e.g. 511.33 C823M or CR863 L318P7")),
	)

	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		code, err := kit.RequiredString(req, "code")
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &parseReq{Code: code}}, nil
	})
}

func registerCompareCodes(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("compare_codes",
		mcp.WithDescription("Compare two call numbers in shelf order. result is -1 when a comes first, 1 when b comes first, 0 when they shelve together."),
		mcp.WithString("a", mcp.Required(), mcp.Description("First call number")),
		mcp.WithString("b", mcp.Required(), mcp.Description("Second call number")),
	)

	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		a, err := kit.RequiredString(req, "a")
		if err != nil {
			return nil, err
		}
		b, err := kit.RequiredString(req, "b")
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &compareReq{A: a, B: b}}, nil
	})
}

func registerLocateBook(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("locate_book",
		mcp.WithDescription("Find the module, face, shelving unit and shelf holding a call number."),
		mcp.WithString("code", mcp.Required(), mcp.Description("The call number to locate")),
		mcp.WithString("level", mcp.Description("Search depth: module, face, unit or shelf (default shelf)")),
		mcp.WithBoolean("include_overflows", mcp.Description("Also list neighbouring shelves the book may have overflowed to")),
	)

	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		code, err := kit.RequiredString(req, "code")
		if err != nil {
			return nil, err
		}
		args := req.GetArguments()
		lv, _ := args["level"].(string)
		level, err := locator.ParseLevel(lv)
		if err != nil {
			return nil, err
		}
		overflows, _ := args["include_overflows"].(bool)
		return &kit.MCPDecodeResult{Request: &locateReq{Code: code, Level: level, IncludeOverflows: overflows}}, nil
	})
}
