package adapters

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/memory"
	"gastos/internal/storage"
)

var art = time.FixedZone("ART", -3*60*60)

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.New(cfg)
}

type countingUpstream struct {
	*memory.Store
	lists   int
	failing error
}

func (u *countingUpstream) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	u.lists++
	if u.failing != nil {
		return nil, u.failing
	}
	return u.Store.ListTransactions(ctx, userID)
}

func (u *countingUpstream) UpdateTransaction(ctx context.Context, id string, upd core.TransactionUpdate) error {
	if u.failing != nil {
		return u.failing
	}
	return u.Store.UpdateTransaction(ctx, id, upd)
}

func newAdapter(t *testing.T) (*SQLiteAdapter, *countingUpstream, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "gastos.db"), art)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	up := &countingUpstream{Store: memory.New([]core.Transaction{
		{ID: "1", UserID: "u1", Date: "2025-10-01T09:00:00", Category: "comida", Amount: core.Money{Cents: 1000}},
		{ID: "2", UserID: "u1", Date: "2025-10-02T09:00:00", Category: "ocio", Amount: core.Money{Cents: 500}},
		{ID: "3", UserID: "u2", Date: "2025-10-02T09:00:00", Category: "ocio", Amount: core.Money{Cents: 700}},
	}, art)}
	return NewSQLiteAdapter(repo, up, quietLogger()), up, repo
}

func TestSQLiteAdapterFirstListFetchesUpstreamOnce(t *testing.T) {
	ctx := context.Background()
	a, up, repo := newAdapter(t)

	for i := 0; i < 3; i++ {
		txs, err := a.ListTransactions(ctx, "u1")
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("call %d: expected 2 transactions, got %d", i, len(txs))
		}
	}
	if up.lists != 1 {
		t.Errorf("expected a single upstream fetch, got %d", up.lists)
	}
	if _, count, ok, err := repo.LastSync(ctx, "u1"); err != nil || !ok || count != 2 {
		t.Errorf("snapshot not stored: count=%d ok=%v err=%v", count, ok, err)
	}
}

func TestSQLiteAdapterFirstListUpstreamError(t *testing.T) {
	a, up, _ := newAdapter(t)
	up.failing = core.ErrUpstream

	if _, err := a.ListTransactions(context.Background(), "u1"); !errors.Is(err, core.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSQLiteAdapterWriteThrough(t *testing.T) {
	ctx := context.Background()
	a, up, repo := newAdapter(t)
	if _, err := a.ListTransactions(ctx, "u1"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	upd := core.TransactionUpdate{Amount: core.Money{Cents: 4200}, PaymentMethod: "credito"}
	if err := a.UpdateTransaction(ctx, "1", upd); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if err := a.DeleteTransaction(ctx, "2"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	for name, list := range map[string]func() ([]core.Transaction, error){
		"upstream": func() ([]core.Transaction, error) { return up.Store.ListTransactions(ctx, "u1") },
		"snapshot": func() ([]core.Transaction, error) { return repo.ListTransactions(ctx, "u1") },
	} {
		txs, err := list()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(txs) != 1 || txs[0].ID != "1" || txs[0].Amount.Cents != 4200 || txs[0].PaymentMethod != "credito" {
			t.Errorf("%s: unexpected rows %+v", name, txs)
		}
	}
}

func TestSQLiteAdapterUpstreamFailureSkipsLocal(t *testing.T) {
	ctx := context.Background()
	a, up, repo := newAdapter(t)
	if _, err := a.ListTransactions(ctx, "u1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	up.failing = core.ErrUpstream

	err := a.UpdateTransaction(ctx, "1", core.TransactionUpdate{Amount: core.Money{Cents: 1}})
	if !errors.Is(err, core.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	txs, _ := repo.ListTransactions(ctx, "u1")
	for _, tx := range txs {
		if tx.ID == "1" && tx.Amount.Cents != 1000 {
			t.Errorf("snapshot changed despite upstream failure: %+v", tx)
		}
	}
}

func TestSQLiteAdapterMissingLocalRowIsIgnored(t *testing.T) {
	// Row exists upstream but the user was never synced locally.
	a, _, _ := newAdapter(t)
	if err := a.DeleteTransaction(context.Background(), "3"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
}

func TestSQLiteAdapterPreferences(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newAdapter(t)

	p := core.DefaultPreferences()
	p.ActiveTab = core.TabHistory
	p.Widgets["installments"] = false
	if err := a.SavePreferences(ctx, "u1", p); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}
	got, err := a.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if got.ActiveTab != core.TabHistory || got.Widgets["installments"] {
		t.Errorf("preferences not persisted: %+v", got)
	}
	if err := a.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
