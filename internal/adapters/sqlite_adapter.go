package adapters

import (
	"context"
	"errors"
	"fmt"

	"gastos/internal/backend"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/storage"
)

// Upstream is the authoritative source of transactions.
type Upstream interface {
	backend.TransactionLister
	backend.TransactionUpdater
	backend.TransactionDeleter
}

var _ backend.Backend = (*SQLiteAdapter)(nil)

// SQLiteAdapter serves reads from the local snapshot and writes mutations
// through to the upstream API before applying them locally. A user with no
// snapshot yet is fetched from upstream once and stored.
type SQLiteAdapter struct {
	storage  *storage.SQLiteRepository
	upstream Upstream
	logger   *log.Logger
}

func NewSQLiteAdapter(repo *storage.SQLiteRepository, upstream Upstream, logger *log.Logger) *SQLiteAdapter {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SQLiteAdapter{
		storage:  repo,
		upstream: upstream,
		logger:   logger.WithComponent(log.ComponentBackend),
	}
}

// ListTransactions implements backend.TransactionLister
func (a *SQLiteAdapter) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	_, _, synced, err := a.storage.LastSync(ctx, userID)
	if err != nil {
		return nil, err
	}
	if synced {
		return a.storage.ListTransactions(ctx, userID)
	}

	txs, err := a.upstream.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := a.storage.ReplaceUserTransactions(ctx, userID, txs); err != nil {
		a.logger.WarnContext(ctx, "Failed to store first snapshot",
			log.FieldUserID, userID,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase)
	}
	return txs, nil
}

// UpdateTransaction implements backend.TransactionUpdater
func (a *SQLiteAdapter) UpdateTransaction(ctx context.Context, id string, u core.TransactionUpdate) error {
	if err := a.upstream.UpdateTransaction(ctx, id, u); err != nil {
		return err
	}
	if err := a.storage.UpdateTransaction(ctx, id, u); err != nil {
		a.logLocalDrift(ctx, log.OpUpdate, id, err)
	}
	return nil
}

// DeleteTransaction implements backend.TransactionDeleter
func (a *SQLiteAdapter) DeleteTransaction(ctx context.Context, id string) error {
	if err := a.upstream.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	if err := a.storage.DeleteTransaction(ctx, id); err != nil {
		a.logLocalDrift(ctx, log.OpDelete, id, err)
	}
	return nil
}

// logLocalDrift records a snapshot that no longer matches upstream. The
// mutation already succeeded upstream and the next sync repairs the row.
func (a *SQLiteAdapter) logLocalDrift(ctx context.Context, op, id string, err error) {
	level := a.logger.WarnContext
	if errors.Is(err, core.ErrNotFound) {
		level = a.logger.DebugContext
	}
	level(ctx, "Snapshot not updated after upstream mutation",
		log.FieldOperation, op,
		log.FieldExpenseID, id,
		log.FieldError, err)
}

// GetPreferences implements backend.PreferencesStore
func (a *SQLiteAdapter) GetPreferences(ctx context.Context, userID string) (core.Preferences, error) {
	return a.storage.GetPreferences(ctx, userID)
}

// SavePreferences implements backend.PreferencesStore
func (a *SQLiteAdapter) SavePreferences(ctx context.Context, userID string, p core.Preferences) error {
	return a.storage.SavePreferences(ctx, userID, p)
}

// Ping reports the local database only; reads never need upstream once a
// snapshot exists.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	if err := a.storage.Ping(ctx); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}
