package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/log"
)

// UserSyncer refreshes the local snapshot of one user.
type UserSyncer interface {
	SyncUser(ctx context.Context, userID string) error
}

// SyncStateReader reports when a user's snapshot was last replaced.
type SyncStateReader interface {
	LastSync(ctx context.Context, userID string) (at time.Time, count int, ok bool, err error)
}

// SyncWorker reacts to expense change events and recovers stale snapshots
// after downtime.
type SyncWorker struct {
	syncer UserSyncer
	state  SyncStateReader
	users  []string
	maxAge time.Duration
	now    func() time.Time
	logger *log.Logger
}

func NewSyncWorker(syncer UserSyncer, state SyncStateReader, users []string, maxAge time.Duration, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		syncer: syncer,
		state:  state,
		users:  users,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExpenseChanged resyncs the user named by msg. Returning an error
// makes the consumer requeue the delivery unless it wraps amqp.ErrPermanent.
func (w *SyncWorker) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense change",
		"message_id", msg.ID,
		log.FieldUserID, msg.UserID,
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldOperation, msg.Operation)

	if err := w.syncer.SyncUser(ctx, msg.UserID); err != nil {
		if errors.Is(err, core.ErrInvalidUserID) || errors.Is(err, core.ErrNotFound) {
			err = errors.Join(amqp.ErrPermanent, err)
		}
		return fmt.Errorf("sync user %s: %w", msg.UserID, err)
	}
	return nil
}

// StartupSyncCheck syncs every user whose snapshot is missing or older than
// maxAge. Individual failures are logged and counted, not returned.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.state == nil {
		return nil
	}

	successCount, errorCount, freshCount := 0, 0, 0
	for _, userID := range w.users {
		if err := ctx.Err(); err != nil {
			return err
		}

		at, count, ok, err := w.state.LastSync(ctx, userID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to read sync state", log.FieldUserID, userID, log.FieldError, err)
			errorCount++
			continue
		}
		if ok && w.now().Sub(at) <= w.maxAge {
			w.logger.DebugContext(ctx, "Snapshot is fresh",
				log.FieldUserID, userID,
				log.FieldCount, count,
				"last_sync", at.Format(time.RFC3339))
			freshCount++
			continue
		}

		if err := w.syncer.SyncUser(ctx, userID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync user during startup", log.FieldUserID, userID, log.FieldError, err)
			errorCount++
			continue
		}
		successCount++
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(w.users),
		"synced", successCount,
		"fresh", freshCount,
		"errors", errorCount)
	return nil
}
