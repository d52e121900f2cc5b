package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/rflorenc/pds-migration-workbench/internal/api"
	"github.com/rflorenc/pds-migration-workbench/internal/config"
	"github.com/rflorenc/pds-migration-workbench/internal/migration"
	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	fsys := afero.NewOsFs()
	cfg, err := config.Parse(fsys, os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Printf("workbench %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "workbench",
		Level:      hclog.LevelFromString(cfg.Log.Level),
		JSONFormat: cfg.Log.JSON,
	})

	records := models.NewRecordStore(fsys, cfg.HistoryFile)
	if err := records.Load(); err != nil {
		logger.Error("could not load migration history", "error", err)
		os.Exit(1)
	}

	orch := migration.NewOrchestrator(migration.Config{
		Monitor:        cfg.Monitor,
		RequestTimeout: cfg.RequestTimeout,
		Retries:        cfg.Retries,
		WorkDir:        cfg.WorkDir,
	}, fsys, clock.WallClock, migration.NewSystemProbe(cfg.WorkDir), logger)

	server := &api.Server{
		Connections:  models.NewConnectionStore(),
		Registry:     models.NewOperationRegistry(),
		Records:      records,
		Orchestrator: orch,
		NewClient:    api.DefaultClientFactory,
		Logger:       logger.Named("api"),
	}

	// Load pre-configured servers from config file
	for _, sc := range cfg.Servers {
		conn := &models.Connection{
			Name:        sc.Name,
			Role:        sc.Role,
			Scheme:      sc.Scheme,
			Host:        sc.Host,
			Port:        sc.Port,
			Handle:      sc.Handle,
			AccessToken: sc.AccessToken,
			Insecure:    sc.Insecure,
		}
		server.Connections.Create(conn)
		logger.Info("loaded server", "name", conn.Name, "url", conn.BaseURL())
		checkServer(logger, platform.NewClient(conn), conn, cfg.RequestTimeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		logger.Info("shutting down; waiting for running migrations")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("PDS migration workbench starting", "version", version, "listen", cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	server.Wait()
}

// checkServer verifies connectivity and the session early so configuration
// mistakes show up at startup instead of mid-migration.
func checkServer(logger hclog.Logger, client platform.Client, conn *models.Connection, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	desc, err := client.DescribeServer(ctx)
	if err != nil {
		logger.Warn("server unreachable", "name", conn.Name, "error", err)
		return
	}
	logger.Info("server reachable", "name", conn.Name, "version", desc.Version, "capabilities", desc.Capabilities)

	if conn.AccessToken == "" {
		logger.Warn("no session token configured", "name", conn.Name)
		return
	}
	did, err := client.Identity(ctx)
	if err != nil {
		logger.Warn("session check failed", "name", conn.Name, "error", err)
		return
	}
	logger.Info("session OK", "name", conn.Name, "did", did)
}
