package services

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and label format of a calendar date.
const DateLayout = "2006-01-02"

// MonthLayout labels monthly buckets.
const MonthLayout = "2006-01"

// CivilDate drops the clock and zone of t, keeping its calendar date as midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrValidation)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must use YYYY-MM-DD", ErrValidation, value)
	}
	return t, nil
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// daysBetween counts whole calendar days from a to b (negative when b is earlier).
func daysBetween(a, b time.Time) int {
	a, b = CivilDate(a), CivilDate(b)
	// Both sides are UTC midnights, so the difference is an exact multiple of 24h.
	return int(b.Sub(a).Hours() / 24)
}

// WeekStart returns the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = CivilDate(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
