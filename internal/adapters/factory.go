// Package adapters builds the backend selected by configuration.
package adapters

import (
	"context"
	"fmt"

	"gastos/internal/api"
	"gastos/internal/backend"
	"gastos/internal/log"
	"gastos/internal/memory"
	"gastos/internal/storage"
)

// DefaultFactory implements backend.Factory
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) backend.Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// apiBackend pairs the upstream client with in-memory preferences; the
// upstream API has no place to keep them.
type apiBackend struct {
	*api.Client
	*memory.Preferences
}

// CreateBackend implements backend.Factory
func (f *DefaultFactory) CreateBackend(ctx context.Context, config backend.Config) (*backend.BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case backend.APIBackend:
		return f.createAPIBackend(config)
	case backend.SQLiteBackend:
		return f.createSQLiteBackend(config)
	case backend.MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type %s: must be one of %v", config.Type, backend.GetBackendTypeStrings())
	}
}

func (f *DefaultFactory) upstream(config backend.Config) *api.Client {
	return api.New(config.APIBaseURL, config.APITimeout,
		api.WithLocation(config.Location),
		api.WithLogger(f.logger.WithComponent(log.ComponentUpstream).Logger))
}

func (f *DefaultFactory) createAPIBackend(config backend.Config) (*backend.BackendResult, error) {
	f.logger.Info("Initialized api backend",
		"base_url", config.APIBaseURL,
		"timeout", config.APITimeout)

	return &backend.BackendResult{
		Backend: apiBackend{Client: f.upstream(config), Preferences: memory.NewPreferences()},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config backend.Config) (*backend.BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	adapter := NewSQLiteAdapter(repo, f.upstream(config), f.logger)

	f.logger.Info("Initialized sqlite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", repo.Schema().Version,
		"base_url", config.APIBaseURL)

	return &backend.BackendResult{
		Backend: adapter,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config backend.Config) (*backend.BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromDir(dataDir, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &backend.BackendResult{Backend: store}, nil
}
