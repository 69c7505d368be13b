package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gastos/internal/backend"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// SnapshotStore replaces the local copy of a user's transactions.
type SnapshotStore interface {
	ReplaceUserTransactions(ctx context.Context, userID string, txs []core.Transaction) (int, error)
}

// SnapshotSyncConfig holds configuration for the snapshot sync
type SnapshotSyncConfig struct {
	// Interval between full syncs of every user (default: 5m)
	Interval time.Duration

	// Concurrency bounds how many users sync at once (default: 4)
	Concurrency int

	// UserIDs are synced on every tick
	UserIDs []string
}

// DefaultSnapshotSyncConfig returns sensible defaults
func DefaultSnapshotSyncConfig() SnapshotSyncConfig {
	return SnapshotSyncConfig{
		Interval:    5 * time.Minute,
		Concurrency: 4,
	}
}

// SnapshotSync copies upstream transactions into the local snapshot and
// refreshes the spreadsheet report of each synced user.
type SnapshotSync struct {
	source  backend.TransactionLister
	store   SnapshotStore
	reports sheets.ReportWriter
	config  SnapshotSyncConfig
	loc     *time.Location
	now     func() time.Time
	logger  *log.Logger

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce *sync.Once
	doneCh   chan struct{}
}

// NewSnapshotSync creates a snapshot sync. reports may be nil.
func NewSnapshotSync(
	source backend.TransactionLister,
	store SnapshotStore,
	reports sheets.ReportWriter,
	config SnapshotSyncConfig,
	loc *time.Location,
	logger *log.Logger,
) *SnapshotSync {
	defaults := DefaultSnapshotSyncConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SnapshotSync{
		source:  source,
		store:   store,
		reports: reports,
		config:  config,
		loc:     loc,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the sync loop. Returns an error if already running.
func (s *SnapshotSync) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("snapshot sync is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopOnce = &sync.Once{}
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Snapshot sync started",
		"interval", s.config.Interval,
		"concurrency", s.config.Concurrency,
		"users", len(s.config.UserIDs))
	return nil
}

// Stop gracefully stops the loop and waits for the current pass to finish.
// It is safe to call concurrently; every caller waits for the same loop.
func (s *SnapshotSync) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, stopOnce, doneCh := s.stopCh, s.stopOnce, s.doneCh
	s.mu.Unlock()

	stopOnce.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Snapshot sync stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Snapshot sync stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	if s.doneCh == doneCh {
		s.running = false
	}
	s.mu.Unlock()
	return nil
}

// IsRunning returns whether the loop is currently running
func (s *SnapshotSync) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SnapshotSync) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	// The first pass runs one interval after Start; callers cover startup
	// with the worker's stale-snapshot check.
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncAllLogged(ctx)
		}
	}
}

func (s *SnapshotSync) syncAllLogged(ctx context.Context) {
	if err := s.SyncAll(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Snapshot sync pass finished with errors", log.FieldError, err)
	}
}

// SyncAll syncs every configured user, at most Concurrency at a time. A
// failing user does not stop the others; all failures are joined.
func (s *SnapshotSync) SyncAll(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)
	for _, userID := range s.config.UserIDs {
		g.Go(func() error {
			if err := s.SyncUser(ctx, userID); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// SyncUser replaces the snapshot of userID with the upstream list and, when
// a report writer is configured, rewrites the user's monthly report.
func (s *SnapshotSync) SyncUser(ctx context.Context, userID string) error {
	start := time.Now()
	txs, err := s.source.ListTransactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	stored, err := s.store.ReplaceUserTransactions(ctx, userID, txs)
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	if s.reports != nil {
		report := sheets.BuildReport(userID, txs, s.now().In(s.loc))
		if err := s.reports.WriteReport(ctx, report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Synced snapshot",
		log.FieldUserID, userID,
		log.FieldCount, stored,
		log.FieldDropped, len(txs)-stored,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
