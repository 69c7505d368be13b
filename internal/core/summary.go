package core

import (
	"sort"
	"strings"
	"time"
)

// MonthSummary is the headline figure of the home view.
type MonthSummary struct {
	Month string `json:"month"` // yyyy-MM
	Total Money  `json:"total"`
	Count int    `json:"count"`
}

// CategoryInfo describes a category seen in the user's transactions.
type CategoryInfo struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// MonthTotal sums the transactions of now's calendar month.
func MonthTotal(txs []Transaction, now time.Time) MonthSummary {
	month := FilterByDateRange(txs, StartOfMonth(now), EndOfMonth(now))
	return MonthSummary{
		Month: now.Format("2006-01"),
		Total: TotalAmount(month),
		Count: len(month),
	}
}

// RecentTransactions returns the current month's transactions, newest first,
// truncated to limit when limit > 0.
func RecentTransactions(txs []Transaction, now time.Time, limit int) []Transaction {
	month := FilterByDateRange(txs, StartOfMonth(now), EndOfMonth(now))
	SortNewestFirst(month)
	if limit > 0 && len(month) > limit {
		month = month[:limit]
	}
	return month
}

// UniqueCategories lists the distinct categories, grouped case-insensitively,
// sorted by key.
func UniqueCategories(txs []Transaction) []CategoryInfo {
	index := make(map[string]int)
	out := make([]CategoryInfo, 0)
	for _, t := range txs {
		key := CategoryKey(t.Category)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CategoryInfo{Key: key, Name: strings.TrimSpace(t.Category), Color: CategoryColor(key)})
		}
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SortNewestFirst orders txs by date descending in place. Undated
// transactions sink to the end in their original order.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.HasValidDate() != b.HasValidDate() {
			return a.HasValidDate()
		}
		return a.At.After(b.At)
	})
}
