package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/config"
	"github.com/rickgao/quantpulse-monitor/internal/console"
	"github.com/rickgao/quantpulse-monitor/internal/poller"
	"github.com/rickgao/quantpulse-monitor/internal/registry"
	"github.com/rickgao/quantpulse-monitor/internal/render"
	"github.com/rickgao/quantpulse-monitor/internal/snapshot"
	"github.com/rickgao/quantpulse-monitor/internal/stream"
	"github.com/rickgao/quantpulse-monitor/internal/subscription"
	"github.com/rickgao/quantpulse-monitor/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging. Stdout is the render surface.
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting monitor",
		"version", version.Version,
		"commit", version.Commit,
		"api_url", cfg.API.BaseURL,
		"interval", cfg.Poller.Interval,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
	)

	reg := registry.New(logger)
	for i, ic := range cfg.Instruments {
		if _, err := reg.Add(ic.Model()); err != nil {
			logger.Error("invalid startup instrument", "index", i, "error", err)
			os.Exit(1)
		}
	}

	renderer := render.New(os.Stdout, render.WithQueue(256))

	var ctrl *poller.Controller
	hub := stream.NewHub(stream.Config{
		Path:         cfg.Stream.Path,
		ViewerBuffer: cfg.Stream.ViewerBuffer,
	}, stream.SelectionFunc(func() (string, bool) { return ctrl.Watched() }), logger)

	handler := poller.SnapshotHandler(renderer)
	if cfg.Stream.Enabled {
		handler = poller.Handlers(renderer, hub)
	}

	ctrl = poller.New(poller.Config{Interval: cfg.Poller.Interval}, apiClient, handler, logger)
	if err := ctrl.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	var streamServer *http.Server
	if cfg.Stream.Enabled {
		streamServer = &http.Server{
			Addr:    cfg.Stream.Addr,
			Handler: hub.Handler(),
		}
		go func() {
			logger.Info("starting stream server", "addr", cfg.Stream.Addr, "path", cfg.Stream.Path)
			if err := streamServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("stream server error", "error", err)
			}
		}()
	}

	subs := subscription.New(apiClient, logger)
	startupSubscribe(ctx, cfg, reg, subs, renderer, logger)

	con := console.New(console.Deps{
		Registry:     reg,
		Subscription: subs,
		Poller:       ctrl,
		Snapshots:    snapshot.New(apiClient, ctrl, logger),
		Renderer:     renderer,
	}, logger)

	renderer.Printf("quantpulse monitor %s, type help for commands", version.Version)
	if err := con.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console error", "error", err)
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := ctrl.Stop(shutdownCtx); err != nil {
		logger.Warn("poller did not stop cleanly", "error", err)
	}
	hub.Close()
	if streamServer != nil {
		streamServer.Shutdown(shutdownCtx)
	}
	if err := renderer.Close(shutdownCtx); err != nil {
		logger.Warn("output not flushed", "error", err)
	}
	if n := renderer.Dropped(); n > 0 {
		logger.Info("snapshots dropped by slow output", "count", n)
	}

	logger.Info("monitor stopped")
}

// startupSubscribe registers the configured instruments and subscribes the
// configured symbols. Failures are reported but do not stop the monitor.
func startupSubscribe(ctx context.Context, cfg *config.MonitorConfig, reg *registry.Registry, subs *subscription.Client, renderer *render.Renderer, logger *slog.Logger) {
	if len(cfg.Subscription.Symbols) == 0 {
		return
	}

	if reg.Len() > 0 {
		symbols, err := subs.RegisterInstruments(ctx, reg.List())
		if err != nil {
			logger.Error("startup registration failed", "error", err)
			renderer.Notice("startup registration failed: " + err.Error())
			return
		}
		logger.Info("startup instruments loaded", "symbols", symbols)
	}

	results, err := subs.Subscribe(ctx, cfg.Subscription.Symbols, subscription.Mode(cfg.Subscription.Mode), cfg.Subscription.CSVFile)
	if err != nil {
		logger.Error("startup subscribe failed", "error", err)
		renderer.Notice("startup subscribe failed: " + err.Error())
		return
	}
	for _, r := range results {
		renderer.Printf("%s %s", r.Symbol, r.Status)
	}
}
