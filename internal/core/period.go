package core

import (
	"fmt"
	"strings"
	"time"
)

// PeriodKind names a date window used to scope aggregation.
type PeriodKind string

const (
	CurrentMonth  PeriodKind = "current"
	PreviousMonth PeriodKind = "last"
	Last90Days    PeriodKind = "90days"
	CustomRange   PeriodKind = "custom"
)

// Period is either one of the named windows or an explicit range.
type Period struct {
	Kind  PeriodKind
	Start time.Time
	End   time.Time
}

// DateRange is an inclusive [Start, End] window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParsePeriodKind accepts the wire names plus a few spelled-out aliases.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "current", "current-month", "mes-actual":
		return CurrentMonth, nil
	case "last", "previous", "previous-month", "mes-anterior":
		return PreviousMonth, nil
	case "90days", "last-90-days", "90d":
		return Last90Days, nil
	case "custom":
		return CustomRange, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, s)
}

// NewCustomPeriod builds an explicit range period.
func NewCustomPeriod(start, end time.Time) Period {
	return Period{Kind: CustomRange, Start: start, End: end}
}

// Range resolves the period into an inclusive window relative to now,
// evaluated in loc.
func (p Period) Range(now time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	switch p.Kind {
	case CurrentMonth, "":
		return DateRange{Start: StartOfMonth(now), End: EndOfMonth(now)}, nil
	case PreviousMonth:
		prev := StartOfMonth(now).AddDate(0, -1, 0)
		return DateRange{Start: prev, End: EndOfMonth(prev)}, nil
	case Last90Days:
		return DateRange{Start: now.AddDate(0, 0, -90), End: now}, nil
	case CustomRange:
		if p.Start.IsZero() || p.End.IsZero() {
			return DateRange{}, fmt.Errorf("%w: custom range needs start and end", ErrInvalidPeriod)
		}
		r := DateRange{Start: p.Start.In(loc), End: EndOfDay(p.End.In(loc))}
		if r.Start.After(r.End) {
			return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod, DayKey(r.Start), DayKey(r.End))
		}
		return r, nil
	}
	return DateRange{}, fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, p.Kind)
}

// Contains reports whether t lies within the inclusive window.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
