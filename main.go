package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/entrypoint"
	"github.com/mrlokans/booktracker/internal/logging"
	"github.com/mrlokans/booktracker/internal/scheduler"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	command := "serve"
	if len(os.Args) >= 2 {
		command = os.Args[1]
	}

	switch command {
	case "serve", "worker", "sweep":
		if err := run(command); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("booktracker %s (%s)\n", Version, Commit)

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func run(command string) error {
	cfg := config.NewConfig()

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("commit", Commit))

	// SIGINT and SIGTERM start a graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "worker":
		return entrypoint.RunWorker(ctx, cfg, Version, log)
	case "sweep":
		return sweepOnce(ctx, cfg, log)
	default:
		return entrypoint.Run(ctx, cfg, Version, log)
	}
}

func sweepOnce(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.EffectiveDispatchMode() == config.DispatchModeDisabled {
		return errors.New("sweep needs an enabled DISPATCH_MODE")
	}

	app, err := entrypoint.Build(ctx, cfg, Version, log)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := scheduler.NewPendingSweeper(app.Store, app.Library, cfg.Sweeper, log).RunNow(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Pending entries: %d, dispatched: %d, failed: %d\n", result.Found, result.Dispatched, result.Failed)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  worker    Consume metadata fetch requests from Kafka (DISPATCH_MODE=kafka)\n")
	fmt.Fprintf(os.Stderr, "  sweep     Re-dispatch stale pending entries once and exit\n")
	fmt.Fprintf(os.Stderr, "  version   Print version information\n")
	fmt.Fprintf(os.Stderr, "\nConfiguration is read from the environment and an optional .env file.\n")
}
