package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fortuna/internal/core"
	"fortuna/internal/log"
)

// RunnerConfig drives the periodic subscription loop.
type RunnerConfig struct {
	// Interval between ProcessDue runs (default: 1h)
	Interval time.Duration
	// Options passed to every run
	Options ProcessOptions
}

// DefaultRunnerConfig returns the worker defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Interval: time.Hour}
}

// SubscriptionRunner calls ProcessDue on a ticker and announces every
// payment it created.
type SubscriptionRunner struct {
	scheduler *Scheduler
	notifier  *Notifier
	config    RunnerConfig
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSubscriptionRunner(scheduler *Scheduler, notifier *Notifier, config RunnerConfig) *SubscriptionRunner {
	if config.Interval <= 0 {
		config.Interval = DefaultRunnerConfig().Interval
	}
	return &SubscriptionRunner{
		scheduler: scheduler,
		notifier:  notifier,
		config:    config,
		now:       time.Now,
	}
}

// RunOnce processes everything due today and publishes the payments. Payments
// committed before ctx was canceled are still announced.
func (r *SubscriptionRunner) RunOnce(ctx context.Context) (ProcessResult, error) {
	result, err := r.scheduler.ProcessDue(ctx, core.DateOf(r.now()), r.config.Options)
	pubCtx := context.WithoutCancel(ctx)
	for _, t := range result.Created {
		r.notifier.SubscriptionPaid(pubCtx, t)
	}
	return result, err
}

// Start begins the processing loop. Returns an error if already running.
func (r *SubscriptionRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("subscription runner is already running")
	}
	r.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	r.stopCh, r.doneCh = stopCh, doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Subscription runner started",
		"interval", r.config.Interval,
		log.FieldForce, r.config.Options.Force,
		"catch_up", r.config.Options.CatchUp)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (r *SubscriptionRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Subscription runner stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Subscription runner stop timed out")
		return ctx.Err()
	}
	return nil
}

func (r *SubscriptionRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *SubscriptionRunner) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		// the loop also ends when ctx is canceled, so Stop may never run
		r.mu.Lock()
		if r.doneCh == doneCh {
			r.running = false
		}
		r.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// run immediately on startup
	r.tick(ctx, stopCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, stopCh)
		}
	}
}

func (r *SubscriptionRunner) tick(ctx context.Context, stopCh <-chan struct{}) {
	// stopping cancels the in-flight run between charges
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	result, err := r.RunOnce(runCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Subscription run failed",
			"created", len(result.Created),
			log.FieldError, err)
	}
}
