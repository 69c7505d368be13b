package core

import (
	"testing"
	"time"
)

func TestGroupHistory(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, art)
	txs := []Transaction{
		tx("1", "2025-10-14T09:00:00", "comida", 100),
		tx("2", "2025-10-15T08:00:00", "hogar", 200),
		tx("3", "2025-10-14T20:00:00", "comida", 300),
		tx("future", "2025-10-20", "hogar", 400),
		tx("undated", "??", "hogar", 500),
	}
	got := GroupHistory(txs, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %+v", got)
	}
	if got[0].Date != "2025-10-15" || got[1].Date != "2025-10-14" {
		t.Fatalf("days not descending: %s, %s", got[0].Date, got[1].Date)
	}
	if got[1].Transactions[0].ID != "3" || got[1].Total.Cents != 400 {
		t.Fatalf("unexpected second day: %+v", got[1])
	}
}

func TestHistoryFilterApply(t *testing.T) {
	txs := []Transaction{
		{ID: "1", Description: "Pizza con amigos", Category: "Comida", PaymentMethod: "crédito"},
		{ID: "2", Description: "Nafta", Category: "transporte", PaymentMethod: "efectivo"},
		{ID: "3", Description: "pizza congelada", Category: "supermercado"},
	}
	tests := []struct {
		name   string
		filter HistoryFilter
		want   []string
	}{
		{"no filter", HistoryFilter{}, []string{"1", "2", "3"}},
		{"search is case-insensitive", HistoryFilter{Search: "PIZZA"}, []string{"1", "3"}},
		{"category ignores case", HistoryFilter{Category: "comida"}, []string{"1"}},
		{"category all", HistoryFilter{Category: "all"}, []string{"1", "2", "3"}},
		{"payment credit", HistoryFilter{Payment: "credit"}, []string{"1"}},
		{"payment unspecified", HistoryFilter{Payment: "unspecified"}, []string{"3"}},
		{"combined", HistoryFilter{Search: "pizza", Payment: "cash"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(txs)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestMonthTotalAndRecent(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, art)
	var txs []Transaction
	for i := 1; i <= 8; i++ {
		txs = append(txs, tx(string(rune('a'+i)), time.Date(2025, 10, i, 10, 0, 0, 0, art).Format(time.RFC3339), "comida", 100))
	}
	txs = append(txs, tx("prev", "2025-09-30", "comida", 1000), tx("undated", "", "comida", 1000))

	sum := MonthTotal(txs, now)
	if sum.Month != "2025-10" || sum.Count != 8 || sum.Total.Cents != 800 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	recent := RecentTransactions(txs, now, 6)
	if len(recent) != 6 {
		t.Fatalf("expected 6 recent transactions, got %d", len(recent))
	}
	if recent[0].At.Day() != 8 || recent[5].At.Day() != 3 {
		t.Fatalf("expected newest first, got days %d..%d", recent[0].At.Day(), recent[5].At.Day())
	}
}

func TestUniqueCategories(t *testing.T) {
	txs := []Transaction{
		{Category: "Salud"}, {Category: "comida"}, {Category: "salud"}, {Category: "Comida"},
	}
	got := UniqueCategories(txs)
	if len(got) != 2 || got[0].Key != "comida" || got[1].Name != "Salud" || got[1].Count != 2 {
		t.Fatalf("unexpected categories: %+v", got)
	}

	got = UniqueCategories([]Transaction{{Category: " Comida "}, {Category: "comida"}})
	if len(got) != 1 || got[0].Name != "Comida" || got[0].Count != 2 {
		t.Fatalf("expected a trimmed display name: %+v", got)
	}
}
