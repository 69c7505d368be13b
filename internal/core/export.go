package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DefaultCurrency is written to exports; the upstream bot records pesos.
const DefaultCurrency = "ARS"

// ExportHeader is the column layout of the CSV export.
var ExportHeader = []string{"id", "ts", "amount", "currency", "category", "note"}

// ExportFilename names an export covering [start, end].
func ExportFilename(r DateRange) string {
	return fmt.Sprintf("gastos_%s_a_%s.csv", DayKey(r.Start), DayKey(r.End))
}

// WriteCSV writes txs oldest first. Cells that a spreadsheet would evaluate
// as formulas are prefixed with a quote.
func WriteCSV(w io.Writer, txs []Transaction, currency string) error {
	if currency == "" {
		currency = DefaultCurrency
	}
	rows := append([]Transaction(nil), txs...)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].At.Equal(rows[j].At) {
			return rows[i].At.Before(rows[j].At)
		}
		return rows[i].ID < rows[j].ID
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range rows {
		rec := []string{
			t.ID,
			t.Date,
			t.Amount.Decimal().String(),
			currency,
			SanitizeCell(t.Category),
			SanitizeCell(t.Description),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SanitizeCell neutralizes spreadsheet formula injection by prefixing a
// single quote when the value starts with a formula trigger.
func SanitizeCell(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
