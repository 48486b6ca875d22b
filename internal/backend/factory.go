package backend

import (
	"context"
	"fmt"

	"kmbot/internal/amqp"
	"kmbot/internal/cache"
	"kmbot/internal/ledger"
	"kmbot/internal/ledger/memory"
	"kmbot/internal/log"
	"kmbot/internal/metrics"
	"kmbot/internal/services"
	"kmbot/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics metrics.Recorder
}

// NewFactory creates a new backend factory. Both arguments may be nil.
func NewFactory(logger *log.Logger, rec metrics.Recorder) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend), metrics: rec}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store     ledger.Store
		publisher services.Publisher
		ready     Pinger
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store, ready = repo, repo

		// AMQP is optional; the worker's pending sweep covers a missing broker
		if config.AMQPURL != "" {
			client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
			if err != nil {
				f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", "error", err)
			} else {
				publisher = client
				f.logger.InfoContext(ctx, "Initialized AMQP client",
					"exchange", config.AMQPExchange,
					"queue", config.AMQPQueue)
			}
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"amqp_enabled", publisher != nil)

	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	result := &BackendResult{Ready: ready, Caches: cache.NewManager()}
	var invalidator services.Invalidator
	if config.SummaryCacheTTL > 0 {
		size := config.SummaryCacheSize
		if size <= 0 {
			size = DefaultSummaryCacheSize
		}
		lru := cache.NewLRUCache[string](size, config.SummaryCacheTTL)
		reports := cache.NewVersioned[string](lru)
		result.Reports = reports
		result.Caches.Register(lru)
		invalidator = reports
	}

	svc := services.NewLedgerService(store, publisher, invalidator, f.metrics)
	result.Store = svc
	result.Cleanup = svc.Close
	return result, nil
}
