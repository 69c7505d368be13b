// Package sheets publishes monthly spending reports to spreadsheets.
package sheets

import (
	"context"
	"fmt"
	"time"

	"gastos/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the stored report of a user with r.
	ReportWriter interface {
		WriteReport(ctx context.Context, r Report) error
	}
)

// Report is the per-user monthly summary written to a sheet.
type Report struct {
	UserID      string
	Month       string // yyyy-MM
	Total       core.Money
	Count       int
	Categories  []core.CategorySpending
	Payments    []core.PaymentSpending
	GeneratedAt time.Time
}

// BuildReport summarizes txs for the calendar month containing now. Both
// breakdowns add up to Total.
func BuildReport(userID string, txs []core.Transaction, now time.Time) Report {
	month := core.FilterByDateRange(txs, core.StartOfMonth(now), core.EndOfMonth(now))
	summary := core.MonthTotal(txs, now)
	return Report{
		UserID:      userID,
		Month:       summary.Month,
		Total:       summary.Total,
		Count:       summary.Count,
		Categories:  core.AggregateByCategory(month),
		Payments:    core.SortPaymentTotals(core.AggregateByPaymentMethod(month)),
		GeneratedAt: now,
	}
}

// Rows renders r as a grid of cell values. Amounts are decimal strings in
// currency units so the sheet parses them as numbers with USER_ENTERED.
func (r Report) Rows() [][]any {
	rows := [][]any{
		{"Mes", r.Month},
		{"Total", r.Total.String()},
		{"Movimientos", r.Count},
		{"Actualizado", r.GeneratedAt.Format("2006-01-02 15:04")},
		{},
		{"Categoría", "Monto", "%"},
	}
	for _, c := range r.Categories {
		rows = append(rows, []any{core.SanitizeCell(c.Category), c.Amount.String(), fmt.Sprintf("%d%%", c.Percentage)})
	}
	rows = append(rows, []any{}, []any{"Medio de pago", "Monto"})
	for _, p := range r.Payments {
		rows = append(rows, []any{core.SanitizeCell(p.Method), p.Amount.String()})
	}
	return rows
}
