package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/hazyhaar/shelfmark/pkg/locator"
	"github.com/hazyhaar/shelfmark/pkg/store"
)

// cmdSeed replaces the database structure with the structure file.
func cmdSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	structure := fs.String("structure", "", "structure file (default from config)")
	fs.Parse(args)

	cfg, logger, parser := setup(*cfgPath)
	if *structure != "" {
		cfg.StructureFile = *structure
	}

	lib, err := locator.LoadLibrary(cfg.StructureFile, parser)
	if err != nil {
		logger.Error("failed to load structure", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath, parser)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Seed(ctx, lib); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		logger.Error("stats", "error", err)
		os.Exit(1)
	}
	logger.Info("database seeded", "path", cfg.DBPath, "modules", stats.Modules,
		"units", stats.Units, "shelves", stats.Shelves)
}

// cmdRefreshKeys recomputes every stored key, e.g. after a change to the
// country whitelist. Rows that fail are logged and left as they were.
func cmdRefreshKeys(args []string) {
	fs := flag.NewFlagSet("refresh-keys", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	cfg, logger, parser := setup(*cfgPath)

	st, err := store.Open(cfg.DBPath, parser)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	report, err := st.RefreshKeys(context.Background(), logger)
	if err != nil {
		logger.Error("refresh failed", "error", err, "updated", report.Updated)
		os.Exit(1)
	}
	json.NewEncoder(os.Stdout).Encode(report)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
