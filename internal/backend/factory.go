package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fortuna/internal/amqp"
	"fortuna/internal/services"
	"fortuna/internal/storage"
	"fortuna/internal/storage/memory"
	"fortuna/internal/storage/sqlstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: store}
	if client := f.connectAMQP(config); client != nil {
		result.Publisher = client
	}

	result.Cleanup = func() error {
		var errs []error
		if result.Publisher != nil {
			errs = append(errs, result.Publisher.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"backend", config.Type,
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		store, err := sqlstore.OpenSQLite(ctx, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Opened SQLite store", "db_path", config.SQLiteDBPath)
		return store, nil
	case PostgresBackend:
		store, err := sqlstore.OpenPostgres(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.InfoContext(ctx, "Opened Postgres store")
		return store, nil
	case MemoryBackend:
		f.logger.InfoContext(ctx, "Using in-memory store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// connectAMQP returns nil when AMQP is not configured or unreachable; the
// ledger keeps working without events.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// Services is every core service wired over one store.
type Services struct {
	Ledger    *services.Ledger
	Budget    *services.BudgetTracker
	Journal   *services.Journal
	Scheduler *services.Scheduler
	Catalog   *services.Catalog
	Snapshot  *services.SnapshotService
	Notifier  *services.Notifier
}

// NewServices wires the core over store. publisher may be nil.
func NewServices(store storage.Store, publisher services.EventPublisher) *Services {
	journal := services.NewJournal(store)
	return &Services{
		Ledger:    services.NewLedger(store),
		Budget:    services.NewBudgetTracker(store),
		Journal:   journal,
		Scheduler: services.NewScheduler(store, journal),
		Catalog:   services.NewCatalog(store),
		Snapshot:  services.NewSnapshotService(store),
		Notifier:  services.NewNotifier(publisher),
	}
}
