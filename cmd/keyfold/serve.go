// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyfold/keyfold/internal/auth"
	authpg "github.com/keyfold/keyfold/internal/auth/postgres"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/httpapi"
	"github.com/keyfold/keyfold/internal/logging"
	"github.com/keyfold/keyfold/internal/observability"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand with all flags configured.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity service",
		Long: `Start the HTTP API serving signup, login, session resolution, and
password reset, plus the observability endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("listen-addr", config.DefaultListenAddr, "HTTP API listen address")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string (or DATABASE_URL)")
	cmd.Flags().String("token-secret", "", "bearer token signing secret (or TOKEN_SECRET)")
	cmd.Flags().Duration("cache-ttl", config.DefaultCacheTTL, "user cache time-to-live")
	cmd.Flags().Duration("store-timeout", config.DefaultStoreTimeout, "per-call credential store deadline")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().Bool("auto-migrate", false, "apply pending schema migrations on startup")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("keyfold", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cancelled on every exit path so background goroutines wind down.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("starting identity service",
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"cache_ttl", cfg.CacheTTL,
	)

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.WaitReady(ctx); err != nil {
		return err
	}

	if cfg.AutoMigrate {
		if err := applyMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	users := authpg.NewUserRepository(db.Pool(), authpg.WithCallTimeout(cfg.StoreTimeout))
	resetRepo := authpg.NewResetRepository(db.Pool())

	cache := auth.NewUserCache(users,
		auth.WithCacheTTL(cfg.CacheTTL),
		auth.WithLookupCounter(auth.CacheLookups),
	)
	cache.Start(ctx)

	hasher := auth.NewBcryptHasher()

	tokens, err := auth.NewTokenService([]byte(cfg.TokenSecret))
	if err != nil {
		return err
	}

	service, err := auth.NewService(users, cache, hasher, tokens)
	if err != nil {
		return err
	}

	resets, err := auth.NewPasswordResetService(users, cache, resetRepo, hasher)
	if err != nil {
		return err
	}

	resolver, err := auth.NewSessionResolver(tokens, cache)
	if err != nil {
		return err
	}

	api := httpapi.NewServer(cfg.ListenAddr, service, resets, resolver, users, logger)
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}

	var obsErrCh <-chan error
	var obs *observability.Server
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
			defer cancel()
			return users.Ping(pingCtx) == nil
		})
		obsErrCh, err = obs.Start()
		if err != nil {
			stopServer(api)
			return err
		}
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr := <-apiErrCh:
		if serveErr != nil {
			errutil.LogError(logger, "api server failed", serveErr)
		}
	case serveErr := <-obsErrCh:
		if serveErr != nil {
			errutil.LogError(logger, "observability server failed", serveErr)
		}
	}

	stopServer(api)
	if obs != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := obs.Stop(stopCtx); err != nil {
			errutil.LogError(logger, "observability server shutdown failed", err)
		}
	}

	cancel()
	cache.Wait()

	return nil
}

// applyMigrations runs all pending migrations against the database.
func applyMigrations(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	slog.Info("schema migrations applied")
	return nil
}

// stopServer shuts down the API server with the standard timeout.
func stopServer(api *httpapi.Server) {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := api.Stop(stopCtx); err != nil {
		slog.Warn("api server shutdown failed", "error", err)
	}
}
