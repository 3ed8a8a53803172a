// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/stockroom/stockroom/internal/config"
	"github.com/stockroom/stockroom/internal/host"
	"github.com/stockroom/stockroom/internal/logging"
	"github.com/stockroom/stockroom/internal/observability"
	"github.com/stockroom/stockroom/internal/plugin"
	"github.com/stockroom/stockroom/internal/plugin/memory"
	pluginpg "github.com/stockroom/stockroom/internal/plugin/postgres"
	"github.com/stockroom/stockroom/internal/store"
)

// loadRetryBase is the base interval for retrying the initial plugin
// load while the record store is not provisioned yet.
const loadRetryBase = time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the stockroom host",
		Long: `Start the stockroom host: discover and load plugins, mount their
modules and serve HTTP until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Flag names mirror config keys so the flag set overlays the file.
	cmd.Flags().StringSlice("plugins.dirs", nil, "plugin search directories")
	cmd.Flags().Bool("plugins.testing", false, "force every discovered plugin active")
	cmd.Flags().String("server.addr", "", "public HTTP listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("observability.addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", "", "log format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("stockroom", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var pool *pgxpool.Pool
	var records plugin.RecordStore
	switch {
	case cfg.Database.URL != "":
		pool, err = store.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		records = pluginpg.NewStore(pool)
		slog.Info("connected to database")
	case cfg.Plugins.Testing:
		records = memory.NewStore()
		slog.Info("using in-memory plugin records")
	default:
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required unless plugins.testing is set")
	}

	apps := host.NewAppRegistry(builtinPaths(), builtinProviders())
	admin := host.NewAdminSite()
	settings := host.NewSettingsCatalog(builtinOptions())
	routes := host.NewRouteTable(nil)
	maint := host.NewMaintenance()

	var obsServer *observability.Server
	var metrics *observability.LoaderMetrics
	if cfg.Observability.Addr != "" {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool {
			return apps.Ready() && !maint.Enabled()
		})
		metrics = obsServer.Metrics()
	}

	loader, err := plugin.NewLoader(plugin.LoaderConfig{
		Discovery:      plugin.NewDiscovery(cfg.Plugins.Dirs, cfg.Plugins.Testing, cfg.Plugins.TestingSetup),
		Records:        records,
		Apps:           apps,
		Admin:          admin,
		Settings:       settings,
		Routes:         routes,
		Maintenance:    maint,
		BaseDir:        baseDir(),
		HostVersion:    version,
		Testing:        cfg.Plugins.Testing,
		EnableSettings: cfg.Plugins.EnableSettings,
		EnableApps:     cfg.Plugins.EnableApps,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}

	// The schema may still be migrating on first boot; retry until the
	// record store is reachable.
	backoff := retry.WithMaxRetries(8, retry.NewFibonacci(loadRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := loader.Load(ctx); err != nil {
			if errors.Is(err, plugin.ErrStoreNotReady) {
				slog.Warn("record store not ready, retrying plugin load")
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return oops.Code("PLUGIN_LOAD_FAILED").Wrap(err)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           hostHandler(routes, maint, loader),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErrChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Stockroom host started")
	slog.Info("host ready", "addr", cfg.Server.Addr)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-httpErrChan:
		return oops.Code("SERVER_FAILED").Wrap(err)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping HTTP server", "error", err)
	}
	if err := loader.Unload(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("error unloading plugins", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// hostHandler serves the live route table, answering 503 while a
// reload holds the maintenance gate. POST /admin/reload re-runs plugin
// discovery in-process; Load/Reload callers must serialize, so the
// handler holds a mutex across the call.
func hostHandler(routes *host.RouteTable, maint *host.Maintenance, loader *plugin.Loader) http.Handler {
	var reloadMu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/admin/reload" {
			reloadMu.Lock()
			err := loader.Reload(r.Context())
			reloadMu.Unlock()
			if err != nil {
				slog.Error("plugin reload failed", "error", err)
				http.Error(w, "reload failed", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if maint.Enabled() {
			http.Error(w, "maintenance in progress", http.StatusServiceUnavailable)
			return
		}
		routes.Router().ServeHTTP(w, r)
	})
}

// monitorServerErrors cancels the process context when a background
// server reports a fatal error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// baseDir is the directory plugin locations are relativized against
// when deriving dotted module paths.
func baseDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
