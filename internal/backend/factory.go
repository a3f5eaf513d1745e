package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"totalx/internal/amqp"
	"totalx/internal/events"
	"totalx/internal/events/kafka"
	"totalx/internal/log"
	"totalx/internal/storage"
	"totalx/internal/storage/memory"
	"totalx/internal/storage/postgres"
	"totalx/internal/storage/workbook"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.WithComponent(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	publisher, closers := f.createPublishers(ctx, config)
	closers = append(closers, repo)

	return &BackendResult{
		Repository: repo,
		Publisher:  publisher,
		Cleanup: func() error {
			var errs []error
			for _, c := range closers {
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createRepository(ctx context.Context, config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.Open(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Postgres backend")
		return repo, nil
	case WorkbookBackend:
		repo, err := workbook.New(config.WorkbookDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize workbook repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized workbook backend", "dir", config.WorkbookDir)
		return repo, nil
	case MemoryBackend:
		f.logger.WarnContext(ctx, "Initialized memory backend, movements are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createPublishers connects the optional event sinks. A sink that cannot be
// reached is logged and skipped: publishing is best effort.
func (f *DefaultFactory) createPublishers(ctx context.Context, config Config) (events.Publisher, []io.Closer) {
	var (
		publishers []events.Publisher
		closers    []io.Closer
	)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publishers = append(publishers, client)
			closers = append(closers, client)
		}
	}

	if len(config.KafkaBrokers) > 0 {
		p := kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic)
		f.logger.InfoContext(ctx, "Initialized Kafka publisher",
			"brokers", config.KafkaBrokers,
			"topic", config.KafkaTopic)
		publishers = append(publishers, p)
		closers = append(closers, p)
	}

	return events.NewFanout(publishers...), closers
}
