package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/hazyhaar/shelfmark/pkg/api"
	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"github.com/hazyhaar/shelfmark/pkg/store"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	cfg, logger, parser := setup(*cfgPath)

	st, err := store.Open(cfg.DBPath, parser)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// The router is rebuilt on SIGHUP; requests always see a complete one.
	var current atomic.Pointer[http.Handler]
	build := func() error {
		router, err := buildRouter(cfg, parser, st, logger)
		if err != nil {
			return err
		}
		current.Store(&router)
		return nil
	}
	if err := build(); err != nil {
		logger.Error("failed to load structure", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			(*current.Load()).ServeHTTP(w, r)
		}),
	}

	// SIGHUP: reload the structure file.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, reloading structure", "path", cfg.StructureFile)
			if err := build(); err != nil {
				logger.Error("reload failed, keeping previous structure", "error", err)
			}
		}
	}()

	go func() {
		logger.Info("shelfmark listening", "addr", cfg.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Shutdown(context.Background())
}

// buildRouter loads the structure file and, when the database is still
// empty and auto_seed is on, seeds it from the structure.
func buildRouter(cfg config, p *callnum.Parser, st *store.Store, logger *slog.Logger) (http.Handler, error) {
	loc, err := loadLocator(cfg, p, logger)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		stats, err := st.Stats(context.Background())
		if err != nil {
			return nil, err
		}
		if stats.Modules == 0 && cfg.AutoSeed {
			if err := st.Seed(context.Background(), loc.Library()); err != nil {
				return nil, err
			}
			logger.Info("database seeded from structure", "path", cfg.StructureFile)
		}
		logger.Info("structure loaded", "modules", len(loc.Library().Modules))
	}
	return api.NewRouter(api.Service{Parser: p, Locator: loc, Store: st, Logger: logger}), nil
}
