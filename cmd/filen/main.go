package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CrispStrobe/filen-go/internal/buildinfo"
	"github.com/CrispStrobe/filen-go/internal/cli"
	"github.com/CrispStrobe/filen-go/internal/config"
	"github.com/CrispStrobe/filen-go/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Global flags come before the subcommand; parsing stops at the first
	// non-flag token. The config flags are declared here only so they are
	// accepted; config.LoadConfig extracts them from os.Args itself.
	fs := flag.NewFlagSet("filen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	verbose := fs.Bool("v", false, "verbose logging")
	version := fs.Bool("version", false, "print build information and exit")
	fs.String("c", "", "path to JSON config file")
	fs.String("config", "", "path to JSON config file")
	fs.String("gateway", "", "gateway API base url")
	fs.String("datadir", "", "directory for credentials and batch state")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	if *version {
		buildinfo.PrintBuildData(os.Stdout)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	initSignalHandler(cancel)

	cfg := config.LoadConfig()
	app := cli.NewApp(cfg, newLogger(*verbose))
	return app.Run(ctx, fs.Args())
}

// initSignalHandler cancels the run context on interrupt so batch loops
// stop between tasks and leave resumable state behind.
func initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func newLogger(verbose bool) logging.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return logging.NewSlogLogger(slog.New(handler))
}
