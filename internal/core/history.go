package core

import (
	"strings"
	"time"
)

// HistoryFilter narrows the transaction history. Zero values match all.
type HistoryFilter struct {
	Search   string
	Category string
	Payment  string
}

// DayGroup is one day of the transaction history.
type DayGroup struct {
	Date         string        `json:"date"`
	Label        string        `json:"label"`
	Total        Money         `json:"total"`
	Transactions []Transaction `json:"transactions"`
}

// Apply returns the transactions matching every set criterion. Search is a
// case-insensitive substring match on the description, category and payment
// compare on their normalized forms.
func (f HistoryFilter) Apply(txs []Transaction) []Transaction {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	category := CategoryKey(f.Category)
	if category == "all" {
		category = ""
	}
	payment, filterPayment := PaymentFilter(f.Payment)

	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if search != "" && !strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if category != "" && CategoryKey(t.Category) != category {
			continue
		}
		if filterPayment && NormalizePaymentMethod(t.PaymentMethod) != payment {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GroupHistory groups transactions dated up to now by calendar day, most
// recent day first and newest transaction first within a day. Future-dated
// and undated transactions are left out.
func GroupHistory(txs []Transaction, now time.Time) []DayGroup {
	past := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.HasValidDate() && !t.At.After(now) {
			past = append(past, t)
		}
	}
	SortNewestFirst(past)

	out := make([]DayGroup, 0)
	for _, t := range past {
		key := DayKey(t.At)
		if n := len(out); n == 0 || out[n-1].Date != key {
			out = append(out, DayGroup{Date: key, Label: DayLabel(t.At)})
		}
		g := &out[len(out)-1]
		g.Total = g.Total.Add(t.Amount)
		g.Transactions = append(g.Transactions, t)
	}
	return out
}
