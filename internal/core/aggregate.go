package core

import (
	"sort"
	"strings"
	"time"
)

// CategorySpending is the total spent in one category within a list.
type CategorySpending struct {
	Category   string `json:"category"`
	Amount     Money  `json:"amount"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
}

// DailyTotal is the amount spent on one calendar day.
type DailyTotal struct {
	Day     time.Time `json:"-"`
	Date    string    `json:"date"`
	Label   string    `json:"label"`
	Weekday string    `json:"weekday"`
	Amount  Money     `json:"amount"`
	Count   int       `json:"count"`
}

// PaymentSpending is the total paid with one normalized method.
type PaymentSpending struct {
	Method string `json:"method"`
	Amount Money  `json:"amount"`
}

// CategoryTotal is one row of the fixed top-categories summary.
type CategoryTotal struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
	Color    string `json:"color"`
}

// UpcomingInstallment is the next due installment of a plan.
type UpcomingInstallment struct {
	ID          string    `json:"id"`
	PlanID      string    `json:"installment_plan_id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Details     string    `json:"installment_details,omitempty"`
	Date        time.Time `json:"date"`
	Amount      Money     `json:"amount"`
}

// FilterByDateRange keeps transactions dated within [start, end] inclusive.
// Transactions with an unparsable date are dropped.
func FilterByDateRange(txs []Transaction, start, end time.Time) []Transaction {
	r := DateRange{Start: start, End: end}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.HasValidDate() && r.Contains(t.At) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByPeriod resolves p relative to now and filters txs to it.
func FilterByPeriod(txs []Transaction, p Period, now time.Time, loc *time.Location) ([]Transaction, DateRange, error) {
	r, err := p.Range(now, loc)
	if err != nil {
		return nil, DateRange{}, err
	}
	return FilterByDateRange(txs, r.Start, r.End), r, nil
}

// AggregateByCategory sums amounts per category. Categories are grouped
// case-insensitively and displayed with the first-seen spelling. The result
// is sorted by amount, largest first, ties in first-seen order.
func AggregateByCategory(txs []Transaction) []CategorySpending {
	out := make([]CategorySpending, 0)
	index := make(map[string]int)
	var total Money

	for _, t := range txs {
		key := CategoryKey(t.Category)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CategorySpending{
				Category: strings.TrimSpace(t.Category),
				Color:    CategoryColor(key),
			})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
		total = total.Add(t.Amount)
	}

	for i := range out {
		out[i].Percentage = Percentage(out[i].Amount, total)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Cents > out[j].Amount.Cents
	})
	return out
}

// AggregateByDay buckets amounts by calendar day in chronological order.
// Transactions with an unparsable date are dropped.
func AggregateByDay(txs []Transaction) []DailyTotal {
	out := make([]DailyTotal, 0)
	index := make(map[string]int)

	for _, t := range txs {
		if !t.HasValidDate() {
			continue
		}
		key := DayKey(t.At)
		i, ok := index[key]
		if !ok {
			day := StartOfDay(t.At)
			i = len(out)
			index[key] = i
			out = append(out, DailyTotal{
				Day:     day,
				Date:    key,
				Label:   DayLabel(day),
				Weekday: WeekdayLabel(day),
			})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
		out[i].Count++
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out
}

// AggregateByPaymentMethod sums amounts per normalized payment method.
// Missing methods are counted under PaymentUnspecified.
func AggregateByPaymentMethod(txs []Transaction) map[string]Money {
	out := make(map[string]Money)
	for _, t := range txs {
		m := NormalizePaymentMethod(t.PaymentMethod)
		out[m] = out[m].Add(t.Amount)
	}
	return out
}

// SortPaymentTotals orders a payment aggregation by amount, largest first,
// then by method name.
func SortPaymentTotals(totals map[string]Money) []PaymentSpending {
	out := make([]PaymentSpending, 0, len(totals))
	for m, a := range totals {
		out = append(out, PaymentSpending{Method: m, Amount: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// NextInstallmentPerPlan returns, for each installment plan, its earliest
// installment dated today or later. Plans whose installments are all in the
// past are omitted. The result is ordered by date.
func NextInstallmentPerPlan(txs []Transaction, now time.Time) []UpcomingInstallment {
	plans := make(map[string][]Transaction)
	var order []string
	for _, t := range txs {
		plan := strings.TrimSpace(t.InstallmentPlanID)
		if plan == "" || !t.HasValidDate() {
			continue
		}
		if _, ok := plans[plan]; !ok {
			order = append(order, plan)
		}
		plans[plan] = append(plans[plan], t)
	}

	out := make([]UpcomingInstallment, 0, len(plans))
	for _, plan := range order {
		items := plans[plan]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].At.Before(items[j].At)
		})
		for _, t := range items {
			today := StartOfDay(now.In(t.At.Location()))
			if StartOfDay(t.At).Before(today) {
				continue
			}
			out = append(out, UpcomingInstallment{
				ID:          t.ID,
				PlanID:      plan,
				Description: t.Label(),
				Category:    t.Category,
				Details:     t.InstallmentDetails,
				Date:        t.At,
				Amount:      t.Amount,
			})
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// TopCategoriesSummary sums only the given categories, in the given order,
// including categories that have no transactions.
func TopCategoriesSummary(txs []Transaction, fixed []string) []CategoryTotal {
	out := make([]CategoryTotal, len(fixed))
	index := make(map[string]int, len(fixed))
	for i, c := range fixed {
		key := CategoryKey(c)
		out[i] = CategoryTotal{Category: key, Color: CategoryColor(key)}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, t := range txs {
		if i, ok := index[CategoryKey(t.Category)]; ok {
			out[i].Amount = out[i].Amount.Add(t.Amount)
		}
	}
	return out
}

// RecentWindow keeps transactions dated strictly after now minus days.
func RecentWindow(txs []Transaction, days int, now time.Time) []Transaction {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	out := make([]Transaction, 0)
	for _, t := range txs {
		if t.HasValidDate() && t.At.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
