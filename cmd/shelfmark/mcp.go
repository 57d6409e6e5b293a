package main

import (
	"flag"
	"os"

	"github.com/hazyhaar/shelfmark/pkg/api"
	"github.com/hazyhaar/shelfmark/pkg/store"
	"github.com/mark3labs/mcp-go/server"
)

// cmdMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they
// never mix with the protocol stream.
func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	noDB := fs.Bool("no-db", false, "do not open the database (tree lookups only)")
	fs.Parse(args)

	cfg, logger, parser := setup(*cfgPath)

	svc := api.Service{Parser: parser, Logger: logger}
	loc, err := loadLocator(cfg, parser, logger)
	if err != nil {
		logger.Error("failed to load structure", "error", err)
		os.Exit(1)
	}
	svc.Locator = loc

	if !*noDB {
		st, err := store.Open(cfg.DBPath, parser)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer st.Close()
		svc.Store = st
	}

	srv := server.NewMCPServer("shelfmark", version, server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, svc)

	logger.Info("shelfmark MCP server on stdio", "version", version)
	if err := server.ServeStdio(srv); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
