package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/hogar/internal/auth"
	"github.com/mmynk/hogar/internal/config"
	"github.com/mmynk/hogar/internal/feed"
	"github.com/mmynk/hogar/internal/service"
	"github.com/mmynk/hogar/internal/storage/sqlite"
	"github.com/mmynk/hogar/pkg/logging"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = time.Minute
)

func serveCmd() *cobra.Command {
	var configPath, addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	return cmd
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (feed.Notifier, error) {
	if cfg.Feed.NATSURL == "" {
		logger.Info("Using in-process change feed")
		return feed.NewBroker(), nil
	}
	n, err := feed.NewNATSNotifier(cfg.Feed.NATSURL, cfg.Feed.Subject, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Using NATS change feed", "url", cfg.Feed.NATSURL, "subject", cfg.Feed.Subject)
	return n, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer notifier.Close()

	source := feed.NewSource(store, notifier, logger)
	writer := feed.NewWriter(store, notifier, logger)
	sessions := service.NewSessionManager(source, writer, store, cfg.PartnerFor, logger).
		WithIdleTimeout(cfg.Server.SessionIdleTimeout)
	sessions.Run(sessionSweepInterval)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(store), store, jwtManager, logger)
	ledgerSvc := service.NewLedgerService(sessions, logger)

	router := service.NewRouter(authSvc, ledgerSvc, jwtManager, logger)

	// h2c serves HTTP/2 without TLS, which Connect streaming needs behind plain proxies.
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Ending sessions closes open WatchLedger streams so Shutdown can finish.
	srv.RegisterOnShutdown(sessions.Close)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		sessions.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
