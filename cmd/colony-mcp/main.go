package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ironsheep/colony-counter-mcp/internal/config"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "colony-counter-mcp - MCP server for counting colonies on plate images")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: colony-counter-mcp [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --config PATH    TOML configuration file")
	fmt.Fprintln(out, "  --version, -v    Print version information")
	fmt.Fprintln(out, "  --help, -h       Print this help message")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintln(out, "  COLONY_CONFIG=PATH            Configuration file when --config is not given")
	fmt.Fprintln(out, "  COLONY_LOG_LEVEL=debug        Log level (debug, info, warn, error)")
	fmt.Fprintln(out, "  COLONY_LOG_FORMAT=json        Log format (text, json)")
	fmt.Fprintln(out, "  COLONY_BATCH_TIMEOUT=90s      Timeout of colony_detect_all")
	fmt.Fprintln(out, "  COLONY_WORKERS=4              Parallel detections (0 = one per CPU)")
	fmt.Fprintln(out, "  COLONY_DATABASE=PATH          SQLite count store")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(out, "Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "TOML configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&showVersion, "v", false, "print version information")
	flag.Usage = usage
	flag.Parse()

	if showVersion || flag.Arg(0) == "version" {
		fmt.Printf("colony-counter-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for MCP protocol
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	logger.WithField("version", Version).
		WithField("commit", GitCommit).
		Debug("Colony counter MCP server starting")

	server.Version = Version
	srv, err := server.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		logger.WithError(err).Error("Server error")
		srv.Close()
		os.Exit(1)
	}
}
