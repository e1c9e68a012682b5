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

	"github.com/f451labs/telemetry/internal/api"
	"github.com/f451labs/telemetry/internal/app"
	"github.com/f451labs/telemetry/internal/auth"
	"github.com/f451labs/telemetry/internal/config"
	"github.com/f451labs/telemetry/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	debug := flag.Bool("debug", false, "log at debug level")
	logFile := flag.String("log", "", "also write JSON logs to this file")
	noCLI := flag.Bool("no-cli", false, "disable the live terminal view")
	uploads := flag.Int("uploads", -1, "stop after this many uploads (0 = unlimited, overrides app.uploads)")
	flag.Parse()

	if *showVersion {
		fmt.Println("f451-demo", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *uploads >= 0 {
		cfg.App.Uploads = *uploads
	}

	logger, closer, err := app.NewLogger(cfg.Log, os.Stderr, *debug, app.QuietConsole(os.Stdout, *noCLI))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	slog.Info("f451-demo starting", "config", *configPath, "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.New(ctx, cfg, app.Options{Version: version, NoCLI: *noCLI})
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	go func() {
		if err := config.Watch(ctx, *configPath, rt.Apply); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.Server.HTTPPort > 0 {
		deps := api.Deps{
			Store:   rt.Store,
			Options: rt.RowOptions(),
			Alerts:  rt.Alerts,
			Uploads: rt.Uploader,
			Sheet:   rt.Sheet,
		}
		hub := ws.New(deps, cfg.Server.BroadcastInterval)
		go hub.Run(ctx)

		requireKey := auth.FromConfig(cfg.Server.Auth)
		mux := http.NewServeMux()
		mux.Handle("/api/", requireKey(api.New(deps)))
		mux.Handle("/metrics", api.Metrics(deps.Store, deps.Options, deps.Uploads))
		mux.Handle("/ws/stream", hub)

		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server stopped", "err", err)
			}
		}()
	}

	if err := rt.Run(ctx); err != nil {
		slog.Error("main loop stopped", "err", err)
	}
	cancel()

	slog.Info("f451-demo shutting down")
	if httpSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
		stop()
	}
	rt.Summary(os.Stdout) //nolint:errcheck
}
