package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pmpv/internal/amqp"
	"pmpv/internal/services"
	"pmpv/internal/sheets/google"
	"pmpv/internal/sheets/xlsx"
	"pmpv/internal/storage"
	"pmpv/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger

	// Swapped in tests
	dialAMQP  func(url, exchange, queue string) (*amqp.Client, error)
	newGoogle func(ctx context.Context) (*google.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:    logger,
		dialAMQP:  amqp.NewClient,
		newGoogle: google.NewFromEnv,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	res := &BackendResult{Files: xlsx.New(config.ExportDir)}

	// AMQP is optional; an unreachable broker only disables result events.
	if config.AMQPURL != "" {
		client, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without result events", "error", err)
		} else {
			res.Publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if config.GoogleEnabled {
		gc, err := f.newGoogle(ctx)
		if err != nil {
			store.Close()
			if res.Publisher != nil {
				res.Publisher.Close()
			}
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		res.Google = gc
		f.logger.Info("Initialized Google Sheets client")
	}

	// A nil *amqp.Client must not become a non-nil publisher interface.
	var publisher services.ResultPublisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}
	res.Service = services.NewQuarterService(store, publisher, config.DefaultSuppliers)
	res.Cleanup = func() error {
		var errs []error
		if res.Publisher != nil {
			errs = append(errs, res.Publisher.Close())
		}
		errs = append(errs, res.Service.Close())
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", res.Publisher != nil,
		"google_enabled", res.Google != nil)
	return res, nil
}

func (f *DefaultFactory) createStore(config Config) (services.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory store; sessions are lost on exit")
		return storage.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// Targets lists the report destinations the export worker writes to.
func (r *BackendResult) Targets() []worker.Target {
	targets := []worker.Target{{Name: "xlsx", Writer: r.Files}}
	if r.Google != nil {
		targets = append(targets, worker.Target{Name: "google", Writer: r.Google})
	}
	return targets
}
