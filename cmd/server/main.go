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

	"notifyhub/internal/api"
	"notifyhub/internal/config"
	"notifyhub/internal/database"
	"notifyhub/internal/metrics"
	"notifyhub/internal/services"
	"notifyhub/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "notifyhub",
		Short:         "Multi-tenant LINE notification service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize configuration
			if err := config.InitConfig(); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}
			// Initialize logging
			logging.InitLogging(config.AppConfig.Mode, config.AppConfig.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.InitDatabase(config.AppConfig); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.CloseDatabase()

			if err := seed(cmd.Context()); err != nil {
				return err
			}
			logging.Infof("Migration completed")
			return nil
		},
	})

	err := root.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg := config.AppConfig

	// Initialize database
	if err := database.InitDatabase(cfg); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.CloseDatabase()

	if err := seed(context.Background()); err != nil {
		return err
	}

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	handler := api.NewHandler(api.Dependencies{
		Config:  cfg,
		DB:      database.DB,
		Redis:   database.RedisClient,
		Metrics: metrics.New(),
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Infof("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// seed creates the admin account and the global settings rows when missing
func seed(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.AppConfig

	if err := services.NewUserService(database.DB, cfg).EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if err := services.NewSettingsService(database.DB, cfg).EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}
