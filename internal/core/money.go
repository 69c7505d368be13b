// Package core provides money parsing and handling utilities.
//
// Amounts travel through the system as integer cents. Upstream JSON numbers
// and user input are parsed exactly with shopspring/decimal so that values
// such as 0.1 + 0.2 never pick up binary floating point error.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	// maxCents keeps single amounts within float64's exact integer range so
	// that summing them cannot realistically reach int64 overflow.
	maxCents = decimal.NewFromInt(1 << 53)
)

// ParseMoney converts a decimal string to Money with half-up rounding to
// cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values and malformed strings are rejected. Zero is accepted; callers that
// need a strictly positive amount check for it.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,34")  -> 1234 cents
//	ParseMoney("12.345") -> 1235 cents (half-up)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents. Negative values are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Add returns m + o, saturating at the int64 bounds.
func (m Money) Add(o Money) Money {
	sum := m.Cents + o.Cents
	switch {
	case o.Cents > 0 && sum < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && sum > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: sum}
}

// Decimal returns the amount in whole currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "1500.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// MarshalJSON renders the amount as a bare JSON number in currency units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Money{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		parsed, err := ParseMoney(strings.Trim(raw, `"`))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return ErrInvalidAmount
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Percentage returns round(part/total*100), or 0 when total is not positive.
func Percentage(part, total Money) int {
	if total.Cents <= 0 {
		return 0
	}
	p := decimal.NewFromInt(part.Cents).
		Mul(hundred).
		DivRound(decimal.NewFromInt(total.Cents), 8).
		Round(0)
	return int(p.IntPart())
}
