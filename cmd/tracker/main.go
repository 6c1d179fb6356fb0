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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marvelcn015/crypto-tracker/internal/api"
	"github.com/marvelcn015/crypto-tracker/internal/auth"
	"github.com/marvelcn015/crypto-tracker/internal/config"
	"github.com/marvelcn015/crypto-tracker/internal/connection"
	"github.com/marvelcn015/crypto-tracker/internal/database"
	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/poller"
	"github.com/marvelcn015/crypto-tracker/internal/router"
	"github.com/marvelcn015/crypto-tracker/internal/status"
	"github.com/marvelcn015/crypto-tracker/internal/tracker"
	"github.com/marvelcn015/crypto-tracker/internal/version"
	"github.com/marvelcn015/crypto-tracker/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/tracker.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	// Set up structured logging
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tracker",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
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

	// Load API credentials
	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenPath)
	if err != nil {
		logger.Error("failed to load API credentials", "error", err)
		os.Exit(1)
	}
	if creds != nil {
		if creds.Expired(time.Now()) {
			logger.Warn("API token is expired", "expires_at", creds.ExpiresAt)
		}
		logger.Info("loaded API credentials", "subject", creds.Subject)
	} else {
		logger.Info("no API token configured, using anonymous access")
	}

	apiClient := api.NewClient(
		cfg.API.RestURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	if err := apiClient.Health(ctx); err != nil {
		logger.Warn("API health check failed", "error", err)
	}

	// Push channel
	dispatcher := router.NewDispatcher(logger)
	connMgr, err := connection.NewManager(managerConfig(cfg, creds), dispatcher, logger)
	if err != nil {
		logger.Error("failed to create connection manager", "error", err)
		os.Exit(1)
	}

	svcCfg := tracker.Config{
		Refresh: poller.Config{
			Interval:    cfg.Sync.RefreshInterval,
			Concurrency: cfg.Sync.FetchConcurrency,
			Timeout:     cfg.API.Timeout,
			AssetLimit:  cfg.Sync.AssetLimit,
		},
	}
	svc := tracker.New(svcCfg, apiClient, connMgr, dispatcher,
		tracker.WithLogger(logger),
		tracker.WithNotifier(market.NotifierFunc(func(a model.Alert) {
			logger.Info("price alert fired",
				"alert", a.ID,
				"asset", a.AssetID,
				"condition", a.Condition,
				"target", a.TargetPrice,
				"price", derefPrice(a.TriggeredPrice),
			)
		})),
	)

	// Snapshot writer must be watching before Start so the initial load is persisted
	var pool *pgxpool.Pool
	var snapshot *writer.SnapshotWriter
	if cfg.Snapshot.Enabled {
		pool, snapshot, err = startSnapshot(ctx, cfg, svc.Store(), logger)
		if err != nil {
			logger.Error("failed to start snapshot writer", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	var pinger status.Pinger
	if pool != nil {
		pinger = pool
	}
	statusServer := status.NewServer(cfg.Status.Port, svc, pinger, logger)
	statusServer.Start()

	if err := svc.Start(ctx); err != nil {
		logger.Error("failed to start tracker", "error", err)
		os.Exit(1)
	}

	logger.Info("tracker running",
		"instance_id", cfg.Instance.ID,
		"status_url", fmt.Sprintf("http://localhost:%d/status", cfg.Status.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown", "error", err)
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Warn("tracker shutdown", "error", err)
	}
	if snapshot != nil {
		if err := snapshot.Stop(shutdownCtx); err != nil {
			logger.Warn("snapshot writer shutdown", "error", err)
		}
	}

	logger.Info("tracker stopped")
}

// managerConfig maps the connection and api sections onto the manager.
func managerConfig(cfg *config.TrackerConfig, creds *auth.Credentials) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.Transports = cfg.Connection.Transports
	mc.ReconnectAttempts = cfg.Connection.ReconnectAttempts
	mc.ReconnectDelay = cfg.Connection.ReconnectDelay
	mc.InboxSize = cfg.Connection.BufferSize
	mc.Transport = connection.TransportConfig{
		WSURL:        cfg.API.WSURL,
		PollURL:      cfg.API.PollURL,
		Credentials:  creds,
		PingInterval: cfg.Connection.PingInterval,
		PingTimeout:  cfg.Connection.PingTimeout,
		WriteTimeout: cfg.Connection.WriteTimeout,
		BufferSize:   cfg.Connection.BufferSize,
		PollTimeout:  cfg.Connection.PollTimeout,
	}
	return mc
}

func startSnapshot(ctx context.Context, cfg *config.TrackerConfig, store *market.Store, logger *slog.Logger) (*pgxpool.Pool, *writer.SnapshotWriter, error) {
	db := cfg.Snapshot.Database
	logger.Info("connecting to snapshot database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	if err := writer.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	w := writer.WatchStore(writer.WriterConfig{
		BatchSize:     cfg.Snapshot.BatchSize,
		FlushInterval: cfg.Snapshot.FlushInterval,
	}, store, pool, logger)

	if err := w.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info("snapshot writer started")
	return pool, w, nil
}

func derefPrice(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
