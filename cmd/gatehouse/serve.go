// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/notify"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values use their default implementations.
type ServeDeps struct {
	// PoolFactory creates the database pool.
	// Default: store.NewPool
	PoolFactory func(ctx context.Context, url string) (*pgxpool.Pool, error)

	// NotifierFactory creates the reset token notifier.
	// Default: notify.NewMailer
	NotifierFactory func(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// OnReady is called once the flows are wired, before blocking on
	// signals. The embedding web layer registers its handlers here.
	OnReady func(*Services)
}

// Services bundles the wired authentication flows for the boundary
// that carries them (HTTP handlers, RPC, tests).
type Services struct {
	Auth   *auth.AuthService
	Resets *auth.PasswordResetService
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the authentication service: connect to PostgreSQL, wire the
login, registration, session and password reset flows, and run until
interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, configFile, nil)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file path")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, configFile string, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = store.NewPool
	}
	if deps.NotifierFactory == nil {
		deps.NotifierFactory = func(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error) {
			return notify.NewMailer(notify.MailerConfig{
				Host:     cfg.Mail.Host,
				Port:     cfg.Mail.Port,
				Username: cfg.Mail.Username,
				Password: cfg.Mail.Password,
				From:     cfg.Mail.From,
				BaseURL:  cfg.Server.BaseURL,
			}, notify.WithMailerLogger(logger))
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := config.Load(resolveConfigFile(configFile), cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "database.url").
			Errorf("database URL is required (set database.url or DATABASE_URL)")
	}

	logger := logging.SetDefault("gatehouse", version, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logger.Info("starting gatehouse",
		"version", version,
		"metrics_addr", cfg.Server.MetricsAddr,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	resets := authpg.NewPasswordResetRepository(pool)
	transactor := authpg.NewTransactor(pool)

	hasher := auth.NewArgon2idHasher()
	limiter := auth.NewLimiter(cfg.Auth.RateLimit, cfg.Auth.Window)

	notifier, err := deps.NotifierFactory(cfg, logger)
	if err != nil {
		return err
	}

	// Observability server starts before the services so its metrics
	// recorder can be wired in.
	var obsServer ObservabilityServer
	var metrics auth.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, func() bool {
			return pool.Ping(ctx) == nil
		})
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return startErr
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop observability server", "error", stopErr)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		if m := obsServer.Metrics(); m != nil {
			metrics = m
		}
	}

	authOpts := []auth.AuthOption{
		auth.WithAuthLogger(logger),
		auth.WithSessionTTLs(cfg.Auth.SessionTTL, cfg.Auth.RememberTTL),
	}
	resetOpts := []auth.ResetOption{
		auth.WithResetLogger(logger),
		auth.WithResetTokenTTL(cfg.Auth.ResetTokenTTL),
	}
	if metrics != nil {
		authOpts = append(authOpts, auth.WithAuthMetrics(metrics))
		resetOpts = append(resetOpts, auth.WithResetMetrics(metrics))
	}

	authSvc, err := auth.NewAuthService(users, sessions, hasher, limiter, authOpts...)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewPasswordResetService(users, resets, hasher, transactor, notifier, resetOpts...)
	if err != nil {
		return err
	}

	if deps.OnReady != nil {
		deps.OnReady(&Services{Auth: authSvc, Resets: resetSvc})
	}
	logger.Info("authentication flows ready")

	sweeper, err := auth.NewSweeper(sessions, resets, cfg.Auth.SweepInterval, logger)
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Gatehouse started")

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	logger.Info("gatehouse stopped")
	return nil
}

// monitorServerErrors watches a server error channel and cancels the
// run context on failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
