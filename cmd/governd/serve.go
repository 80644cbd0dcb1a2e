package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/governd/internal/config"
	"github.com/fyrsmithlabs/governd/internal/events"
	"github.com/fyrsmithlabs/governd/internal/governor"
	"github.com/fyrsmithlabs/governd/internal/http"
	"github.com/fyrsmithlabs/governd/internal/logging"
	"github.com/fyrsmithlabs/governd/internal/policy"
	"github.com/fyrsmithlabs/governd/internal/store"
	"github.com/fyrsmithlabs/governd/internal/telemetry"
	"github.com/fyrsmithlabs/governd/internal/undo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the governd daemon",
	Long: `Start the governd HTTP server with full service initialization:
policy rules, task store, undo runner, NATS eventing and telemetry.

Configuration is loaded from the config file, then overridden by
environment variables. See the config package for the mapping.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return run(ctx)
	},
}

// run starts the daemon and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Loads policy rules (with optional hot reload)
//  4. Opens the task store
//  5. Connects the event publisher
//  6. Wires the governor service and HTTP server
//  7. Performs graceful shutdown on context cancellation
func run(ctx context.Context) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting governd",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Insecure:       cfg.Telemetry.Insecure,
		MetricPeriod:   time.Duration(cfg.Telemetry.MetricPeriod) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Policy rules, hot-reloaded when configured
	source, err := policy.NewRuleSource(cfg.Policy.RulesPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load policy rules: %w", err)
	}
	defer source.Close()

	if cfg.Policy.WatchRules {
		if err := source.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch policy rules: %w", err)
		}
		logger.Info("watching policy rules", zap.String("path", cfg.Policy.RulesPath))
	}

	state := &policy.State{
		Source:  source,
		Limiter: rate.NewLimiter(rate.Limit(cfg.Policy.RatePerSecond), cfg.Policy.RateBurst),
	}

	engine := policy.NewEngine(logger)
	engine.Register(policy.RateLimitValidator{})
	engine.Register(policy.PathValidator{})
	engine.Register(policy.CommandValidator{})
	engine.Register(policy.EffectAuditValidator{})

	// Task store
	taskStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	defer func() {
		if err := taskStore.Close(); err != nil {
			logger.Warn("task store close failed", zap.Error(err))
		}
	}()

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		natsPub, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		publisher = natsPub
		logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("publisher close failed", zap.Error(err))
		}
	}()

	// Undo runner confined to the workspace root
	runner, err := undo.NewLocalRunner(cfg.Undo.WorkspaceRoot,
		undo.WithTimeout(cfg.Undo.Timeout),
		undo.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create undo runner: %w", err)
	}

	gov, err := governor.NewService(engine, state, taskStore, runner.Apply, publisher, logger)
	if err != nil {
		return fmt.Errorf("failed to create governor service: %w", err)
	}
	defer func() {
		_ = gov.Close()
	}()

	srv, err := http.NewServer(gov, logger, &http.Config{
		Host: "0.0.0.0",
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	srv.UseMetrics(http.NewHTTPMetrics(logger))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore opens the configured task persistence backend.
func openStore(cfg *config.Config) (store.TaskStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.OpenSQLite(cfg.Store.Path)
	default:
		return store.NewMemoryStore(), nil
	}
}
