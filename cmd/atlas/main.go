package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whharris917/atlas-sub000/internal/config"
)

var (
	configPath = flag.String("config", "./atlas.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single scan and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("atlas v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./atlas.toml" {
			cfg, err = config.Load("./atlas.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.SourceRoots = flag.Args()
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Scan(ctx); err != nil {
		slog.Error("initial scan failed", "error", err)
		os.Exit(1)
	}

	if *once {
		return
	}

	if cfg.Watch.MetricsAddr != "" {
		srv := newObservabilityServer(cfg.Watch.MetricsAddr)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	if err := app.WatchLoop(ctx); err != nil {
		slog.Error("watch mode failed", "error", err)
		os.Exit(1)
	}
}
