package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Transaction is a single recorded expense as returned by the upstream
	// expenses API. Date keeps the raw upstream text; At holds the parsed
	// instant and is zero when Date could not be parsed.
	Transaction struct {
		ID                 string    `json:"id"`
		Date               string    `json:"date"`
		At                 time.Time `json:"-"`
		Description        string    `json:"description,omitempty"`
		Category           string    `json:"category"`
		Amount             Money     `json:"amount"`
		UserID             string    `json:"user_id,omitempty"`
		PaymentMethod      string    `json:"payment_method,omitempty"`
		InstallmentPlanID  string    `json:"installment_plan_id,omitempty"`
		InstallmentDetails string    `json:"installment_details,omitempty"`
	}

	Money struct {
		Cents int64
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyID         = errors.New("empty transaction id")
	ErrNotFound        = errors.New("transaction not found")
	ErrUpstream        = errors.New("upstream unavailable")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrUnknownTimezone = errors.New("unknown timezone")

	ErrExportUnavailable = errors.New("backend has no export of its own")
)

// HasValidDate reports whether the transaction date could be parsed.
func (t Transaction) HasValidDate() bool {
	return !t.At.IsZero()
}

// Validate checks the invariants the aggregator relies on. A transaction with
// an unparsable date is still valid: date-based operations skip it.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Amount.Cents < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, t.Amount)
	}
	return nil
}

// Label is the text shown for a transaction in lists: the description, or the
// category when the description is empty.
func (t Transaction) Label() string {
	if d := strings.TrimSpace(t.Description); d != "" {
		return d
	}
	return t.Category
}

// ResolveDates parses the raw Date of every transaction in loc and returns a
// new slice with At filled in. Unparsable dates leave At zero.
func ResolveDates(txs []Transaction, loc *time.Location) []Transaction {
	out := make([]Transaction, len(txs))
	for i, t := range txs {
		if at, err := ParseTimestamp(t.Date, loc); err == nil {
			t.At = at
		} else {
			t.At = time.Time{}
		}
		out[i] = t
	}
	return out
}

// TotalAmount sums the amounts of all transactions, valid date or not.
func TotalAmount(txs []Transaction) Money {
	var total Money
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
