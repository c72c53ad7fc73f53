package backend

import (
	"context"
	"fmt"

	"foodie/internal/cache"
	"foodie/internal/log"
	"foodie/internal/metrics"
	"foodie/internal/source/airtable"
	"foodie/internal/source/cached"
	"foodie/internal/source/google"
	"foodie/internal/source/memory"
	"foodie/internal/storage"
)

// DefaultFactory implements the Factory interface. Metrics and the cache
// manager are optional.
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
	caches  *cache.Manager
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger, m *metrics.Metrics, caches *cache.Manager) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
		caches:  caches,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case AirtableBackend:
		res = f.createAirtableBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res.Type = config.Type

	if config.NoCache {
		return res, nil
	}

	c := cached.New(metrics.Source(res.Source, config.Type.String(), f.metrics), config.CacheTTL, f.observer())
	if f.caches != nil {
		f.caches.Register(c.Cache())
	}
	res.Source = c
	return res, nil
}

// observer avoids handing cached.New a non-nil interface around a nil pointer.
func (f *DefaultFactory) observer() cached.Observer {
	if f.metrics == nil {
		return nil
	}
	return f.metrics
}

func (f *DefaultFactory) createAirtableBackend(config Config) *BackendResult {
	client := airtable.New(config.Airtable)

	f.logger.Info("Initialized Airtable backend",
		"table", config.Airtable.Table,
		"detail_table", config.Airtable.DetailTable,
		"credentials", config.Airtable.APIKey != "" && config.Airtable.BaseID != "",
		"view", config.Airtable.ViewID != "")

	return &BackendResult{Source: client}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.New(ctx, config.Google)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", config.Google.Sheet)

	return &BackendResult{Source: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.MemoryDataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend data: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_file", config.MemoryDataFile)

	return &BackendResult{Source: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Source:  repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}
