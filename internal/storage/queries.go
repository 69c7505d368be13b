package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	ID                 string
	UserID             string
	Date               string
	Description        string
	Category           string
	AmountCents        int64
	PaymentMethod      string
	InstallmentPlanID  string
	InstallmentDetails string
}

const listTransactionsByUser = `-- name: ListTransactionsByUser :many
SELECT id, user_id, date, description, category, amount_cents,
       payment_method, installment_plan_id, installment_details
FROM transactions
WHERE user_id = ?
ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.Description,
			&i.Category,
			&i.AmountCents,
			&i.PaymentMethod,
			&i.InstallmentPlanID,
			&i.InstallmentDetails,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (
    id, user_id, date, description, category, amount_cents,
    payment_method, installment_plan_id, installment_details
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    date = excluded.date,
    description = excluded.description,
    category = excluded.category,
    amount_cents = excluded.amount_cents,
    payment_method = excluded.payment_method,
    installment_plan_id = excluded.installment_plan_id,
    installment_details = excluded.installment_details`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.UserID,
		arg.Date,
		arg.Description,
		arg.Category,
		arg.AmountCents,
		arg.PaymentMethod,
		arg.InstallmentPlanID,
		arg.InstallmentDetails,
	)
	return err
}

const deleteTransactionsByUser = `-- name: DeleteTransactionsByUser :exec
DELETE FROM transactions WHERE user_id = ?`

func (q *Queries) DeleteTransactionsByUser(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteTransactionsByUser, userID)
	return err
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions SET amount_cents = ?, payment_method = ? WHERE id = ?`

type UpdateTransactionParams struct {
	AmountCents   int64
	PaymentMethod string
	ID            string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction, arg.AmountCents, arg.PaymentMethod, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertSyncState = `-- name: UpsertSyncState :exec
INSERT INTO sync_state (user_id, synced_at, row_count) VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    synced_at = excluded.synced_at,
    row_count = excluded.row_count`

// SyncStateRow records the last snapshot refresh of a user.
type SyncStateRow struct {
	UserID   string
	SyncedAt string
	RowCount int64
}

func (q *Queries) UpsertSyncState(ctx context.Context, arg SyncStateRow) error {
	_, err := q.db.ExecContext(ctx, upsertSyncState, arg.UserID, arg.SyncedAt, arg.RowCount)
	return err
}

const getSyncState = `-- name: GetSyncState :one
SELECT user_id, synced_at, row_count FROM sync_state WHERE user_id = ?`

func (q *Queries) GetSyncState(ctx context.Context, userID string) (SyncStateRow, error) {
	row := q.db.QueryRowContext(ctx, getSyncState, userID)
	var i SyncStateRow
	err := row.Scan(&i.UserID, &i.SyncedAt, &i.RowCount)
	return i, err
}

const getPreferences = `-- name: GetPreferences :one
SELECT active_tab, widgets FROM preferences WHERE user_id = ?`

type PreferencesRow struct {
	ActiveTab string
	Widgets   string
}

func (q *Queries) GetPreferences(ctx context.Context, userID string) (PreferencesRow, error) {
	row := q.db.QueryRowContext(ctx, getPreferences, userID)
	var i PreferencesRow
	err := row.Scan(&i.ActiveTab, &i.Widgets)
	return i, err
}

const upsertPreferences = `-- name: UpsertPreferences :exec
INSERT INTO preferences (user_id, active_tab, widgets, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    active_tab = excluded.active_tab,
    widgets = excluded.widgets,
    updated_at = excluded.updated_at`

type UpsertPreferencesParams struct {
	UserID    string
	ActiveTab string
	Widgets   string
	UpdatedAt string
}

func (q *Queries) UpsertPreferences(ctx context.Context, arg UpsertPreferencesParams) error {
	_, err := q.db.ExecContext(ctx, upsertPreferences, arg.UserID, arg.ActiveTab, arg.Widgets, arg.UpdatedAt)
	return err
}
