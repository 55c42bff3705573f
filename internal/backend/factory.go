package backend

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/store"
	"expensetracker/internal/store/dynamo"
	"expensetracker/internal/store/memory"
	"expensetracker/internal/store/sqlite"
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
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	// Record events are optional; a broker outage must not keep the API down.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without record events", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewExpenseService(st, publisher)

	return &BackendResult{
		Service:       svc,
		Store:         st,
		Cleanup:       svc.Close,
		EventsEnabled: publisher != nil,
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (store.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil

	case DynamoDBBackend:
		st, err := dynamo.New(ctx, dynamo.Config{
			Table:    config.DynamoDBTable,
			Region:   config.DynamoDBRegion,
			Endpoint: config.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DynamoDB store: %w", err)
		}
		f.logger.Info("Initialized DynamoDB backend",
			"table", config.DynamoDBTable,
			"region", config.DynamoDBRegion,
			"endpoint", config.DynamoDBEndpoint)
		return st, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
