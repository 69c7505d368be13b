package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gastos/internal/core"
)

// defaultCategory replaces blank categories; the upstream bot files
// unclassified expenses under it.
const defaultCategory = "otros"

var errMissingField = errors.New("missing field")

// flexString decodes a JSON string, number or null into text. The upstream
// serializes ids as numbers but older rows carry them as strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = flexString(n.String())
	}
	return nil
}

// expenseDTO is the wire shape of GET /api/expenses/{userId}.
type expenseDTO struct {
	ID                 flexString  `json:"id"`
	Date               flexString  `json:"date"`
	Description        flexString  `json:"description"`
	Category           flexString  `json:"category"`
	Amount             *core.Money `json:"amount"`
	UserID             flexString  `json:"user_id"`
	PaymentMethod      flexString  `json:"payment_method"`
	InstallmentPlanID  flexString  `json:"installment_plan_id"`
	InstallmentDetails flexString  `json:"installment_details"`
}

// decodeExpense converts one upstream record. Missing ids or amounts and
// negative amounts are errors; an unparsable date is not, the transaction
// simply keeps a zero At.
func decodeExpense(raw json.RawMessage, loc *time.Location) (core.Transaction, error) {
	var dto expenseDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return core.Transaction{}, err
	}
	if dto.Amount == nil {
		return core.Transaction{}, fmt.Errorf("%w: amount", errMissingField)
	}

	t := core.Transaction{
		ID:                 strings.TrimSpace(string(dto.ID)),
		Date:               strings.TrimSpace(string(dto.Date)),
		Description:        strings.TrimSpace(string(dto.Description)),
		Category:           strings.TrimSpace(string(dto.Category)),
		Amount:             *dto.Amount,
		UserID:             string(dto.UserID),
		PaymentMethod:      strings.TrimSpace(string(dto.PaymentMethod)),
		InstallmentPlanID:  strings.TrimSpace(string(dto.InstallmentPlanID)),
		InstallmentDetails: strings.TrimSpace(string(dto.InstallmentDetails)),
	}
	if t.Category == "" {
		t.Category = defaultCategory
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if at, err := core.ParseTimestamp(t.Date, loc); err == nil {
		t.At = at
	}
	return t, nil
}
