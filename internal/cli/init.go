// Package cli provides common initialization utilities.
// This package consolidates the startup and shutdown sequence shared by
// cmd/fortuna-api, cmd/fortuna, cmd/subscription-worker and cmd/sheets-sync-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fortuna/internal/backend"
	"fortuna/internal/config"
	"fortuna/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. An unparseable level falls back to info.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger, err := log.Setup(cfg.LogLevel, cfg.LogFormat, component)
	if err != nil {
		logger, _ = log.Setup("info", cfg.LogFormat, component)
		logger.Warn("Invalid log level, using info", "log_level", cfg.LogLevel, log.FieldError, err)
	}
	return logger
}

// LoadConfig reads .env files for local development, then the environment.
// Missing .env files are not an error.
func LoadConfig() *config.Config {
	config.LoadDotEnv()
	return config.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend opens the configured store and optional event publisher and
// wires the services over them. Call result.Cleanup when done.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, *backend.Services, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, err
	}
	return result, backend.NewServices(result.Store, result.Publisher), nil
}

// MustOpenBackend is OpenBackend for daemons: failures exit the process.
func MustOpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, *backend.Services) {
	result, svc, err := OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return result, svc
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has returned or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Context cancelled")
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is over.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
