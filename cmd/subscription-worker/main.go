package main

import (
	"context"
	"os"
	"time"

	"fortuna/internal/cli"
	"fortuna/internal/log"
	"fortuna/internal/services"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentScheduler)

	logger.Info("Starting subscription-worker")

	result, svc := cli.MustOpenBackend(context.Background(), logger, cfg)
	if result.Publisher == nil {
		logger.Info("AMQP disabled - payments will not be announced")
	}

	runner := services.NewSubscriptionRunner(svc.Scheduler, svc.Notifier, services.RunnerConfig{
		Interval: cfg.SubscriptionInterval,
		Options: services.ProcessOptions{
			Force:   cfg.SubscriptionForceBudget,
			CatchUp: cfg.SubscriptionCatchUp,
		},
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		logger.Info("Shutting down subscription-worker...")
		if err := runner.Stop(shutdownCtx); err != nil {
			logger.Warn("Runner did not stop cleanly", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := runner.Start(ctx); err != nil {
		logger.Error("Failed to start subscription runner", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
