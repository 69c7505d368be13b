package core

import (
	"testing"
	"time"
)

func TestAggregateByCategoryFoldsCase(t *testing.T) {
	txs := []Transaction{
		tx("1", "2025-10-01", "Comida", 10000),
		tx("2", "2025-10-02", "comida", 5000),
		tx("3", "2025-10-03", "Transporte", 5000),
	}
	got := AggregateByCategory(txs)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(got), got)
	}
	if got[0].Category != "Comida" || got[0].Amount.Cents != 15000 || got[0].Percentage != 75 {
		t.Errorf("unexpected first bucket: %+v", got[0])
	}
	if got[1].Category != "Transporte" || got[1].Amount.Cents != 5000 || got[1].Percentage != 25 {
		t.Errorf("unexpected second bucket: %+v", got[1])
	}
	if got[0].Color != "#F46036" || got[1].Color != "#1B998B" {
		t.Errorf("unexpected colors: %s %s", got[0].Color, got[1].Color)
	}

	var sum int64
	for _, c := range got {
		sum += c.Amount.Cents
	}
	if sum != TotalAmount(txs).Cents {
		t.Fatalf("category sum %d != transaction sum %d", sum, TotalAmount(txs).Cents)
	}
}

func TestAggregateByCategoryEmpty(t *testing.T) {
	got := AggregateByCategory(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAggregateByCategoryZeroTotal(t *testing.T) {
	got := AggregateByCategory([]Transaction{tx("1", "2025-10-01", "salud", 0)})
	if len(got) != 1 || got[0].Percentage != 0 {
		t.Fatalf("expected a single 0%% bucket, got %+v", got)
	}
}

func TestAggregateByCategoryStableTies(t *testing.T) {
	txs := []Transaction{
		tx("1", "2025-10-01", "ropa", 100),
		tx("2", "2025-10-01", "salud", 300),
		tx("3", "2025-10-01", "hogar", 100),
		tx("4", "2025-10-01", "Ropa", 0),
	}
	got := AggregateByCategory(txs)
	want := []string{"salud", "ropa", "hogar"}
	for i, w := range want {
		if got[i].Category != w {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, w, got[i].Category, got)
		}
	}
}

func TestAggregateByCategoryPercentagesNearHundred(t *testing.T) {
	txs := []Transaction{
		tx("1", "", "a", 333),
		tx("2", "", "b", 333),
		tx("3", "", "c", 334),
		tx("4", "", "d", 1),
	}
	got := AggregateByCategory(txs)
	sum := 0
	for _, c := range got {
		sum += c.Percentage
	}
	if sum < 100-len(got) || sum > 100+len(got) {
		t.Fatalf("percentages sum to %d", sum)
	}
}

func TestAggregateByCategoryKeepsUndated(t *testing.T) {
	txs := []Transaction{
		tx("1", "not a date", "comida", 500),
		tx("2", "2025-10-02", "comida", 500),
	}
	if got := AggregateByCategory(txs); got[0].Amount.Cents != 1000 {
		t.Fatalf("undated transaction must count toward categories, got %+v", got)
	}
	if got := AggregateByDay(txs); len(got) != 1 || got[0].Amount.Cents != 500 {
		t.Fatalf("undated transaction must be dropped from days, got %+v", got)
	}
}

func TestAggregateByDayOrdersAcrossMonths(t *testing.T) {
	txs := []Transaction{
		tx("1", "2025-11-05T10:00:00", "comida", 100),
		tx("2", "2025-10-28T22:00:00", "comida", 200),
		tx("3", "2025-11-05T18:00:00", "hogar", 300),
		tx("4", "2026-01-02", "hogar", 400),
		tx("5", "2025-12-30", "hogar", 500),
	}
	got := AggregateByDay(txs)
	wantLabels := []string{"28/10", "05/11", "30/12", "02/01"}
	if len(got) != len(wantLabels) {
		t.Fatalf("expected %d days, got %+v", len(wantLabels), got)
	}
	for i, w := range wantLabels {
		if got[i].Label != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, got[i].Label)
		}
		if i > 0 && got[i].Day.Before(got[i-1].Day) {
			t.Fatalf("days out of order at %d", i)
		}
	}
	if got[1].Amount.Cents != 400 || got[1].Count != 2 {
		t.Fatalf("05/11 should merge two transactions, got %+v", got[1])
	}
}

func TestAggregateByDayBucketsByLocalDay(t *testing.T) {
	// 01:30 UTC on the 29th is still the 28th in Buenos Aires.
	got := AggregateByDay([]Transaction{tx("1", "2025-10-29T01:30:00Z", "comida", 100)})
	if len(got) != 1 || got[0].Date != "2025-10-28" {
		t.Fatalf("expected the 28th, got %+v", got)
	}
}

func TestAggregateByPaymentMethod(t *testing.T) {
	txs := []Transaction{
		{ID: "1", Category: "c", Amount: Money{Cents: 100}, PaymentMethod: "credito"},
		{ID: "2", Category: "c", Amount: Money{Cents: 200}, PaymentMethod: "Crédito"},
		{ID: "3", Category: "c", Amount: Money{Cents: 50}},
		{ID: "4", Category: "c", Amount: Money{Cents: 25}, PaymentMethod: "uala"},
	}
	got := AggregateByPaymentMethod(txs)
	if got[PaymentCredit].Cents != 300 || got[PaymentUnspecified].Cents != 50 || got["Uala"].Cents != 25 {
		t.Fatalf("unexpected totals: %+v", got)
	}

	sorted := SortPaymentTotals(got)
	if sorted[0].Method != PaymentCredit || sorted[len(sorted)-1].Method != "Uala" {
		t.Fatalf("unexpected order: %+v", sorted)
	}
	if len(AggregateByPaymentMethod(nil)) != 0 {
		t.Fatalf("expected empty map")
	}
}

func TestNextInstallmentPerPlan(t *testing.T) {
	now := time.Date(2025, 10, 15, 18, 0, 0, 0, art)
	plan := func(id, plan, date string) Transaction {
		t := tx(id, date, "tecnología", 1000)
		t.InstallmentPlanID = plan
		return t
	}
	txs := []Transaction{
		plan("a3", "A", "2025-11-15"),
		plan("a1", "A", "2025-09-15"),
		plan("a2", "A", "2025-10-15T08:00:00"), // earlier today still counts
		plan("b1", "B", "2025-08-01"),
		plan("b2", "B", "2025-09-01"),
		plan("c2", "C", "2025-12-01"),
		plan("c1", "C", "2025-10-20"),
		tx("x", "2025-10-20", "comida", 100),
	}
	got := NextInstallmentPerPlan(txs, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 plans, got %+v", got)
	}
	if got[0].ID != "a2" || got[1].ID != "c1" {
		t.Fatalf("unexpected selection: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Description != "tecnología" {
		t.Fatalf("expected category as description fallback, got %q", got[0].Description)
	}
}

func TestNextInstallmentPerPlanPastOnly(t *testing.T) {
	now := time.Date(2025, 10, 15, 0, 0, 0, 0, art)
	old := tx("1", "2025-01-01", "ropa", 10)
	old.InstallmentPlanID = "P"
	if got := NextInstallmentPerPlan([]Transaction{old}, now); len(got) != 0 {
		t.Fatalf("expected no entries, got %+v", got)
	}
}

func TestTopCategoriesSummary(t *testing.T) {
	txs := []Transaction{
		tx("1", "", "Comida", 100),
		tx("2", "", "HOGAR", 200),
		tx("3", "", "comida", 50),
		tx("4", "", "mascotas", 999),
	}
	got := TopCategoriesSummary(txs, DefaultTopCategories)
	if len(got) != len(DefaultTopCategories) {
		t.Fatalf("expected %d entries, got %d", len(DefaultTopCategories), len(got))
	}
	for i, c := range got {
		if c.Category != DefaultTopCategories[i] {
			t.Fatalf("order changed at %d: %s", i, c.Category)
		}
	}
	if got[0].Amount.Cents != 200 || got[2].Amount.Cents != 150 || got[1].Amount.Cents != 0 {
		t.Fatalf("unexpected amounts: %+v", got)
	}
}

func TestFilterByDateRangeInclusive(t *testing.T) {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, art)
	end := time.Date(2025, 10, 31, 23, 59, 59, 999999999, art)
	txs := []Transaction{
		tx("start", "2025-10-01T00:00:00", "c", 1),
		tx("end", "2025-10-31T23:59:59", "c", 1),
		tx("before", "2025-09-30T23:59:59", "c", 1),
		tx("after", "2025-11-01", "c", 1),
		tx("bad", "31/10/2025", "c", 1),
	}
	got := FilterByDateRange(txs, start, end)
	if len(got) != 2 || got[0].ID != "start" || got[1].ID != "end" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFilterByPeriod(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, art)
	txs := []Transaction{
		tx("1", "2025-10-03", "c", 1),
		tx("2", "2025-09-03", "c", 1),
	}
	got, r, err := FilterByPeriod(txs, Period{Kind: PreviousMonth}, now, art)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" || r.Start.Month() != time.September {
		t.Fatalf("unexpected result %+v in %+v", got, r)
	}
}

func TestRecentWindowIsStrict(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, art)
	txs := []Transaction{
		tx("edge", "2025-10-08T12:00:00", "c", 1),
		tx("inside", "2025-10-08T12:00:01", "c", 1),
		tx("today", "2025-10-15T09:00:00", "c", 1),
		tx("bad", "", "c", 1),
	}
	got := RecentWindow(txs, 7, now)
	if len(got) != 2 || got[0].ID != "inside" || got[1].ID != "today" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
