package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"github.com/hazyhaar/shelfmark/pkg/locator"
	"gopkg.in/yaml.v3"
)

const version = "0.3.0"

type config struct {
	Addr              string   `yaml:"addr"`
	DBPath            string   `yaml:"db_path"`
	StructureFile     string   `yaml:"structure_file"`
	Countries         []string `yaml:"countries"`
	OverflowTolerance float64  `yaml:"overflow_tolerance"`
	LogLevel          string   `yaml:"log_level"`
	AutoSeed          bool     `yaml:"auto_seed"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "parse":
		cmdParse(os.Args[2:])
	case "keys":
		cmdKeys(os.Args[2:])
	case "seed":
		cmdSeed(os.Args[2:])
	case "refresh-keys":
		cmdRefreshKeys(os.Args[2:])
	case "version":
		fmt.Println("shelfmark", version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: shelfmark <command> [flags]

Commands:
  serve          Start the HTTP server
  mcp            Serve the MCP tools over stdio
  parse          Parse call numbers and print their fields and keys
  keys           Encode a CSV of call numbers into comparable keys
  seed           Load the structure file into the database
  refresh-keys   Recompute stored comparable keys from stored ranges
  version        Print the version
`)
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:              ":8430",
		DBPath:            "shelfmark.db",
		StructureFile:     "library.yaml",
		OverflowTolerance: locator.DefaultOverflowTolerance,
		LogLevel:          "info",
		AutoSeed:          true,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger returns a text logger on stderr at the given level name.
// Unknown names fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// setup loads the config and builds the logger and parser shared by every
// subcommand.
func setup(cfgPath string) (config, *slog.Logger, *callnum.Parser) {
	cfg := loadConfig(cfgPath, newLogger("info"))
	logger := newLogger(cfg.LogLevel)

	var opts []callnum.Option
	if len(cfg.Countries) > 0 {
		opts = append(opts, callnum.WithCountries(cfg.Countries))
	}
	return cfg, logger, callnum.NewParser(opts...)
}

// loadLocator reads the structure file. A missing file is not an error:
// the server then answers from the database alone.
func loadLocator(cfg config, p *callnum.Parser, logger *slog.Logger) (*locator.Locator, error) {
	if _, err := os.Stat(cfg.StructureFile); os.IsNotExist(err) {
		logger.Warn("no structure file, tree lookups disabled", "path", cfg.StructureFile)
		return nil, nil
	}
	lib, err := locator.LoadLibrary(cfg.StructureFile, p)
	if err != nil {
		return nil, err
	}
	return locator.New(lib, locator.WithParser(p), locator.WithOverflowTolerance(cfg.OverflowTolerance)), nil
}
