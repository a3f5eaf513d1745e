package backend

import (
	"context"

	"totalx/internal/events"
	"totalx/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the persistence backend, the event publisher wired to
// it and a cleanup releasing both.
type BackendResult struct {
	Repository storage.Repository
	Publisher  events.Publisher
	Cleanup    CleanupFunc
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

	// Postgres specific
	PostgresDSN string

	// Workbook specific
	WorkbookDir string

	// Event publishing, both optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	WorkbookBackend BackendType = "workbook"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, WorkbookBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Shared reports whether other processes (totalxctl, the worker, another
// server) can write to the same stores. Data read from a shared backend must
// not be cached across requests.
func (bt BackendType) Shared() bool {
	return bt != MemoryBackend
}
