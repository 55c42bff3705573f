package backend

import (
	"context"

	"expensetracker/internal/services"
	"expensetracker/internal/store"
)

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired service and its cleanup function
type BackendResult struct {
	Service *services.ExpenseService
	Store   store.Store
	Cleanup CleanupFunc

	// EventsEnabled reports whether record events are published.
	EventsEnabled bool
}

// Ready reports whether the underlying store is reachable. Stores without a
// health check are always ready.
func (r *BackendResult) Ready(ctx context.Context) error {
	if p, ok := r.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// DynamoDB specific
	DynamoDBTable    string
	DynamoDBRegion   string
	DynamoDBEndpoint string

	// Record events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	DynamoDBBackend BackendType = "dynamodb"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, DynamoDBBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
