package core

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is the zone the upstream bot records expenses in.
const DefaultTimezone = "America/Argentina/Buenos_Aires"

// Layouts that carry their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
}

// Layouts without offset, interpreted in the dashboard location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

var weekdayLabels = [...]string{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"}

// LoadLocation resolves a zone name, falling back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownTimezone, name, err)
	}
	return loc, nil
}

// ParseTimestamp parses an ISO-8601 timestamp and returns it in loc.
// Timestamps without an offset are taken to be wall-clock time in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfMonth returns the first instant of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last nanosecond of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// DayKey formats the calendar day of t as yyyy-MM-dd.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DayLabel formats the calendar day of t as dd/MM.
func DayLabel(t time.Time) string {
	return t.Format("02/01")
}

// WeekdayLabel returns the short Spanish weekday name of t.
func WeekdayLabel(t time.Time) string {
	return weekdayLabels[t.Weekday()]
}
