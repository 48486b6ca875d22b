package backend

import (
	"context"
	"time"

	"kmbot/internal/cache"
	"kmbot/internal/ledger"
)

// Pinger is implemented by backends with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired store and the pieces the server shares
// with it. Reports is nil when the summary cache is disabled, Ready is nil
// when the backend has nothing to check.
type BackendResult struct {
	Store   ledger.Store
	Reports cache.Cache[string]
	Caches  *cache.Manager
	Ready   Pinger
	Cleanup CleanupFunc
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
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Summary cache, disabled when SummaryCacheTTL is zero
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
