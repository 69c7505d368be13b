package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is a local snapshot of upstream transactions plus the
// dashboard preferences, which have no upstream home.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
	schema  SchemaVersion
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if schema.Dirty {
		db.Close()
		return nil, fmt.Errorf("schema version %d is dirty", schema.Version)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
		schema:  schema,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Schema returns the migration version applied at open time.
func (r *SQLiteRepository) Schema() SchemaVersion {
	return r.schema
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// ListTransactions returns the snapshot of userID with dates resolved.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrInvalidUserID
	}
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t := core.Transaction{
			ID:                 row.ID,
			UserID:             row.UserID,
			Date:               row.Date,
			Description:        row.Description,
			Category:           row.Category,
			Amount:             core.Money{Cents: row.AmountCents},
			PaymentMethod:      row.PaymentMethod,
			InstallmentPlanID:  row.InstallmentPlanID,
			InstallmentDetails: row.InstallmentDetails,
		}
		if at, err := core.ParseTimestamp(t.Date, r.loc); err == nil {
			t.At = at
		}
		out = append(out, t)
	}
	return out, nil
}

// ReplaceUserTransactions swaps the whole snapshot of userID in a single
// database transaction. Records failing validation are skipped.
func (r *SQLiteRepository) ReplaceUserTransactions(ctx context.Context, userID string, txs []core.Transaction) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, core.ErrInvalidUserID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteTransactionsByUser(ctx, userID); err != nil {
		return 0, fmt.Errorf("clear snapshot: %w", err)
	}

	stored := 0
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid transaction in snapshot",
				"component", "storage", "user_id", userID, "expense_id", t.ID, "error", err)
			continue
		}
		if err := q.InsertTransaction(ctx, TransactionRow{
			ID:                 t.ID,
			UserID:             userID,
			Date:               t.Date,
			Description:        t.Description,
			Category:           t.Category,
			AmountCents:        t.Amount.Cents,
			PaymentMethod:      t.PaymentMethod,
			InstallmentPlanID:  t.InstallmentPlanID,
			InstallmentDetails: t.InstallmentDetails,
		}); err != nil {
			return 0, fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
		stored++
	}

	if err := q.UpsertSyncState(ctx, SyncStateRow{
		UserID:   userID,
		SyncedAt: r.now().UTC().Format(time.RFC3339Nano),
		RowCount: int64(stored),
	}); err != nil {
		return 0, fmt.Errorf("record sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return stored, nil
}

// LastSync reports when the snapshot of userID was last replaced. ok is false
// for users never synced.
func (r *SQLiteRepository) LastSync(ctx context.Context, userID string) (at time.Time, count int, ok bool, err error) {
	row, err := r.queries.GetSyncState(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("get sync state: %w", err)
	}
	at, err = time.Parse(time.RFC3339Nano, row.SyncedAt)
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("parse sync time %q: %w", row.SyncedAt, err)
	}
	return at, int(row.RowCount), true, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id string, u core.TransactionUpdate) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	if err := u.Validate(); err != nil {
		return err
	}
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		AmountCents:   u.Amount.Cents,
		PaymentMethod: u.PaymentMethod,
		ID:            id,
	})
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteRepository) GetPreferences(ctx context.Context, userID string) (core.Preferences, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Preferences{}, core.ErrInvalidUserID
	}
	row, err := r.queries.GetPreferences(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultPreferences(), nil
	}
	if err != nil {
		return core.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	p := core.Preferences{ActiveTab: row.ActiveTab}
	if err := json.Unmarshal([]byte(row.Widgets), &p.Widgets); err != nil {
		slog.WarnContext(ctx, "Ignoring corrupt widget preferences",
			"component", "storage", "user_id", userID, "error", err)
		p.Widgets = nil
	}
	return p.Normalized(), nil
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, userID string, p core.Preferences) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrInvalidUserID
	}
	p = p.Normalized()
	if err := p.Validate(); err != nil {
		return err
	}
	widgets, err := json.Marshal(p.Widgets)
	if err != nil {
		return fmt.Errorf("marshal widgets: %w", err)
	}
	if err := r.queries.UpsertPreferences(ctx, UpsertPreferencesParams{
		UserID:    userID,
		ActiveTab: p.ActiveTab,
		Widgets:   string(widgets),
		UpdatedAt: r.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
