package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/log"

	"golang.org/x/sync/singleflight"
)

// Home card sizes.
const (
	RecentTransactionsLimit = 6
	InstallmentsLimit       = 4
	ActivityWindowDays      = 7
)

// EventPublisher announces that a user's expenses changed.
type EventPublisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// DashboardOptions configures a DashboardService. Zero values get defaults.
type DashboardOptions struct {
	Location      *time.Location
	CacheSize     int
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
	TopCategories []string
	Publisher     EventPublisher
	Logger        *log.Logger
	Now           func() time.Time
}

// DashboardService serves the dashboard views of a user from a cached
// transaction list.
//
// Every invalidation of a user bumps its generation. A fetch records the
// generation it started under and only stores its result when that
// generation is still current, so a slow response can never replace data
// fetched after a mutation.
type DashboardService struct {
	backend   backend.Backend
	exporter  backend.CSVExporter
	publisher EventPublisher

	cache cache.Cache[[]core.Transaction]
	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64

	fetchTimeout time.Duration

	loc    *time.Location
	top    []string
	now    func() time.Time
	logger *log.Logger
}

// NewDashboardService wires the service to b. When b can stream its own CSV
// export, ExportAll proxies it.
func NewDashboardService(b backend.Backend, opts DashboardOptions) *DashboardService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.TopCategories == nil {
		opts.TopCategories = core.DefaultTopCategories
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	s := &DashboardService{
		backend:      b,
		publisher:    opts.Publisher,
		cache:        cache.NewLRUCache[[]core.Transaction](opts.CacheSize, opts.CacheTTL),
		generations:  make(map[string]uint64),
		fetchTimeout: opts.FetchTimeout,
		loc:          opts.Location,
		top:          opts.TopCategories,
		now:          opts.Now,
		logger:       opts.Logger.WithComponent(log.ComponentDashboard),
	}
	if exp, ok := b.(backend.CSVExporter); ok {
		s.exporter = exp
	}
	return s
}

// Cache exposes the transaction cache so a cache.Manager can evict expired
// entries.
func (s *DashboardService) Cache() cache.Cleaner {
	if c, ok := s.cache.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// Location is the zone dates are bucketed in.
func (s *DashboardService) Location() *time.Location {
	return s.loc
}

func (s *DashboardService) clock() time.Time {
	return s.now().In(s.loc)
}

// Transactions returns the transactions of userID, from cache when fresh.
// Concurrent callers for the same user and generation share one fetch.
func (s *DashboardService) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, core.ErrInvalidUserID
	}
	if txs, ok := s.cache.Get(userID); ok {
		return txs, nil
	}

	gen := s.generation(userID)
	key := fmt.Sprintf("%s#%d", userID, gen)
	// The fetch is shared, so it must outlive the caller that started it.
	// Each caller still stops waiting when its own ctx is done.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(fetchCtx, s.fetchTimeout)
		defer cancel()
		txs, err := s.backend.ListTransactions(fetchCtx, userID)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(userID, gen, txs)
		return txs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.WarnContext(ctx, "Failed to fetch transactions",
				log.FieldUserID, userID, log.FieldGeneration, gen, log.FieldError, res.Err)
			return nil, fmt.Errorf("fetch transactions: %w", res.Err)
		}
		return res.Val.([]core.Transaction), nil
	}
}

func (s *DashboardService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// storeIfCurrent caches txs unless userID was invalidated after gen started.
func (s *DashboardService) storeIfCurrent(userID string, gen uint64, txs []core.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		s.logger.Debug("Discarding stale fetch",
			log.FieldUserID, userID, log.FieldGeneration, gen, "current", s.generations[userID])
		return false
	}
	s.cache.Set(userID, txs)
	return true
}

// Invalidate drops the cached list of userID and makes in-flight fetches
// stale.
func (s *DashboardService) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	s.cache.Delete(userID)
}

// Refresh invalidates userID and fetches again. Workers are told to resync
// the user's snapshot as well.
func (s *DashboardService) Refresh(ctx context.Context, userID string) ([]core.Transaction, error) {
	s.Invalidate(userID)
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, log.NewFields().WithUser(userID).WithOperation(amqp.OperationRefresh), userID, "", amqp.OperationRefresh)
	return txs, nil
}

// HomeView is the landing page of the dashboard. Widgets hidden by the
// user's preferences are left empty.
type HomeView struct {
	GeneratedAt        time.Time                  `json:"generated_at"`
	Preferences        core.Preferences           `json:"preferences"`
	MonthSummary       *core.MonthSummary         `json:"month_summary,omitempty"`
	TopCategories      []core.CategoryTotal       `json:"top_categories,omitempty"`
	PaymentSummary     []core.PaymentSpending     `json:"payment_summary,omitempty"`
	RecentTransactions []core.Transaction         `json:"recent_transactions,omitempty"`
	Installments       []core.UpcomingInstallment `json:"installments,omitempty"`
	RecentActivity     []core.DailyTotal          `json:"recent_activity,omitempty"`
	Errors             []string                   `json:"errors,omitempty"`
}

func (s *DashboardService) Home(ctx context.Context, userID string) (*HomeView, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	view := &HomeView{GeneratedAt: now}

	prefs, err := s.backend.GetPreferences(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Using default preferences", log.FieldUserID, userID, log.FieldError, err)
		prefs = core.DefaultPreferences()
		view.Errors = append(view.Errors, "preferences")
	}
	view.Preferences = prefs

	if prefs.Widgets["month_summary"] {
		m := core.MonthTotal(txs, now)
		view.MonthSummary = &m
	}
	if prefs.Widgets["top_categories"] {
		view.TopCategories = core.TopCategoriesSummary(txs, s.top)
	}
	if prefs.Widgets["payment_summary"] {
		view.PaymentSummary = core.SortPaymentTotals(core.AggregateByPaymentMethod(txs))
	}
	if prefs.Widgets["recent_transactions"] {
		view.RecentTransactions = core.RecentTransactions(txs, now, RecentTransactionsLimit)
	}
	if prefs.Widgets["installments"] {
		next := core.NextInstallmentPerPlan(txs, now)
		if len(next) > InstallmentsLimit {
			next = next[:InstallmentsLimit]
		}
		view.Installments = next
	}
	if prefs.Widgets["recent_activity"] {
		view.RecentActivity = core.AggregateByDay(core.RecentWindow(txs, ActivityWindowDays, now))
	}
	return view, nil
}

// AnalysisView breaks down spending within a period.
type AnalysisView struct {
	Period     core.PeriodKind         `json:"period"`
	Range      core.DateRange          `json:"range"`
	Total      core.Money              `json:"total"`
	Count      int                     `json:"count"`
	Categories []core.CategorySpending `json:"categories"`
	Daily      []core.DailyTotal       `json:"daily"`
}

func (s *DashboardService) Analysis(ctx context.Context, userID string, p core.Period) (*AnalysisView, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	filtered, rng, err := core.FilterByPeriod(txs, p, s.clock(), s.loc)
	if err != nil {
		return nil, err
	}
	kind := p.Kind
	if kind == "" {
		kind = core.CurrentMonth
	}
	return &AnalysisView{
		Period:     kind,
		Range:      rng,
		Total:      core.TotalAmount(filtered),
		Count:      len(filtered),
		Categories: core.AggregateByCategory(filtered),
		Daily:      core.AggregateByDay(filtered),
	}, nil
}

// HistoryView is the filtered transaction history grouped by day.
type HistoryView struct {
	Days  []core.DayGroup `json:"days"`
	Total core.Money      `json:"total"`
	Count int             `json:"count"`
}

func (s *DashboardService) History(ctx context.Context, userID string, f core.HistoryFilter) (*HistoryView, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	days := core.GroupHistory(f.Apply(txs), s.clock())
	view := &HistoryView{Days: days}
	for _, d := range days {
		view.Total = view.Total.Add(d.Total)
		view.Count += len(d.Transactions)
	}
	return view, nil
}

func (s *DashboardService) Categories(ctx context.Context, userID string) ([]core.CategoryInfo, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.UniqueCategories(txs), nil
}

// Export returns a CSV of userID's transactions within rng. A nil rng means
// the current month up to now.
func (s *DashboardService) Export(ctx context.Context, userID string, rng *core.DateRange) (*backend.Export, error) {
	now := s.clock()
	r := core.DateRange{Start: core.StartOfMonth(now), End: now}
	if rng != nil {
		r = *rng
	}
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := core.WriteCSV(&buf, core.FilterByDateRange(txs, r.Start, r.End), core.DefaultCurrency); err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}
	return &backend.Export{Filename: core.ExportFilename(r), Body: io.NopCloser(&buf)}, nil
}

// ExportAll streams the backend's own export of the current month. It is
// not scoped to a user and fails with core.ErrExportUnavailable when the backend
// has no exporter.
func (s *DashboardService) ExportAll(ctx context.Context) (*backend.Export, error) {
	if s.exporter == nil {
		return nil, core.ErrExportUnavailable
	}
	exp, err := s.exporter.ExportCSV(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return exp, nil
}

// UpdateTransaction edits expense id of userID and invalidates the user's
// cached list.
func (s *DashboardService) UpdateTransaction(ctx context.Context, userID, id string, u core.TransactionUpdate) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrInvalidUserID
	}
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	u.PaymentMethod = strings.TrimSpace(u.PaymentMethod)
	if err := u.Validate(); err != nil {
		return err
	}
	if err := s.backend.UpdateTransaction(ctx, id, u); err != nil {
		return fmt.Errorf("update expense %s: %w", id, err)
	}
	s.afterMutation(ctx, userID, id, amqp.OperationUpdate)
	return nil
}

// DeleteTransaction removes expense id of userID and invalidates the user's
// cached list.
func (s *DashboardService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrInvalidUserID
	}
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	if err := s.backend.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	s.afterMutation(ctx, userID, id, amqp.OperationDelete)
	return nil
}

// afterMutation invalidates the cache and announces the change. A failed
// publish is logged; the mutation itself already succeeded.
func (s *DashboardService) afterMutation(ctx context.Context, userID, id, op string) {
	s.Invalidate(userID)
	fields := log.NewFields().WithExpense(userID, id).WithOperation(op)
	s.logger.InfoContext(ctx, "Expense changed", fields.ToSlice()...)
	s.publish(ctx, fields, userID, id, op)
}

func (s *DashboardService) publish(ctx context.Context, fields log.LogFields, userID, id, op string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseChanged(ctx, amqp.NewExpenseChangedMessage(userID, id, op)); err != nil {
		fields.WithError(err).WithErrorType(log.ErrorTypeNetwork)
		s.logger.ErrorContext(ctx, "Failed to publish expense change", fields.ToSlice()...)
	}
}

func (s *DashboardService) Preferences(ctx context.Context, userID string) (core.Preferences, error) {
	return s.backend.GetPreferences(ctx, userID)
}

func (s *DashboardService) SavePreferences(ctx context.Context, userID string, p core.Preferences) (core.Preferences, error) {
	p = p.Normalized()
	if err := s.backend.SavePreferences(ctx, userID, p); err != nil {
		return core.Preferences{}, err
	}
	return p, nil
}

// Ready reports whether the backend can serve requests.
func (s *DashboardService) Ready(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return errors.Join(core.ErrUpstream, err)
	}
	return nil
}
