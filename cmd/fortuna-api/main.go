package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fortuna/internal/cli"
	apphttp "fortuna/internal/http"
	"fortuna/internal/log"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	result, svc := cli.MustOpenBackend(context.Background(), logger, cfg)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		ReportCacheTTL:     cfg.ReportCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting fortuna API",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", result.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
