package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"parlift/internal/config"
	"parlift/internal/observability"
)

var (
	configPath  = flag.String("config", "./parlift.toml", "Path to config file")
	destination = flag.String("dest", "", "Destination directory for generated artifacts (overrides config)")
	watch       = flag.Bool("watch", false, "Recompile on source changes")
	showHistory = flag.Int("history", 0, "Print the N most recent compilation runs and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("parlift v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *destination != "" {
		cfg.Paths.Destination = *destination
	}

	ctx := context.Background()
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = shutdownTracing(ctx)
	}()

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *showHistory > 0 {
		if err := app.PrintHistory(*showHistory); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: parlift [flags] <source file or directory>...")
		os.Exit(1)
	}

	summary, err := app.Run(ctx, flag.Args())
	if err != nil {
		slog.Error("compilation failed", "error", err)
		os.Exit(1)
	}
	app.PrintSummary(summary)

	if !*watch {
		if summary.Errors > 0 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := app.StartWatcher(ctx, flag.Args()); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	// Block forever
	select {}
}
