package core

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidPreferences = errors.New("invalid preferences")

// Dashboard tabs.
const (
	TabHome     = "home"
	TabAnalysis = "analysis"
	TabHistory  = "history"
	TabSettings = "settings"
)

// Home widgets that can be toggled.
var HomeWidgets = []string{
	"month_summary", "top_categories", "payment_summary",
	"recent_transactions", "installments", "recent_activity",
}

// Preferences is the persisted dashboard state of a user.
type Preferences struct {
	ActiveTab string          `json:"active_tab"`
	Widgets   map[string]bool `json:"widgets"`
}

// DefaultPreferences shows every widget on the home tab.
func DefaultPreferences() Preferences {
	p := Preferences{ActiveTab: TabHome, Widgets: make(map[string]bool, len(HomeWidgets))}
	for _, w := range HomeWidgets {
		p.Widgets[w] = true
	}
	return p
}

// Normalized fills in missing widgets with their default visibility.
func (p Preferences) Normalized() Preferences {
	out := DefaultPreferences()
	if p.ActiveTab != "" {
		out.ActiveTab = p.ActiveTab
	}
	for k, v := range p.Widgets {
		out.Widgets[k] = v
	}
	return out
}

// Validate rejects unknown tabs and widgets.
func (p Preferences) Validate() error {
	switch p.ActiveTab {
	case TabHome, TabAnalysis, TabHistory, TabSettings:
	default:
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidPreferences, p.ActiveTab)
	}
	known := make(map[string]struct{}, len(HomeWidgets))
	for _, w := range HomeWidgets {
		known[w] = struct{}{}
	}
	var unknown []string
	for w := range p.Widgets {
		if _, ok := known[w]; !ok {
			unknown = append(unknown, w)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown widgets %v", ErrInvalidPreferences, unknown)
	}
	return nil
}

// TransactionUpdate is the editable part of a transaction.
type TransactionUpdate struct {
	Amount        Money  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

// Validate requires a strictly positive amount.
func (u TransactionUpdate) Validate() error {
	if u.Amount.Cents <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return nil
}

// Apply returns t with the update applied.
func (u TransactionUpdate) Apply(t Transaction) Transaction {
	t.Amount = u.Amount
	t.PaymentMethod = u.PaymentMethod
	return t
}
