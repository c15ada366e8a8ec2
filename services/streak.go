package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/cppla/habitly/models"
)

// Frequency is the cadence a habit is expected to be completed at.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Frequencies lists the supported cadences in display order.
var Frequencies = []Frequency{Daily, Weekly, Monthly}

// ParseFrequency accepts daily, weekly or monthly (case-insensitive). Anything else is a
// configuration error; there is no fallback cadence.
func ParseFrequency(value string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(value))); f {
	case Daily, Weekly, Monthly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrConfiguration, value)
	}
}

// HabitState is the engine-owned part of a habit.
type HabitState struct {
	Frequency     Frequency
	Streak        int
	LongestStreak int
	LastCompleted *time.Time
}

// CompletionEvent is a toggle of one calendar date.
type CompletionEvent struct {
	Date        time.Time
	IsCompleted bool
}

// StateOf extracts the engine state from a persisted habit.
func StateOf(h models.Habit) (HabitState, error) {
	freq, err := ParseFrequency(h.Frequency)
	if err != nil {
		return HabitState{}, err
	}
	state := HabitState{Frequency: freq, Streak: h.Streak, LongestStreak: h.LongestStreak}
	if h.LastCompleted != nil {
		last := CivilDate(*h.LastCompleted)
		state.LastCompleted = &last
	}
	return state, nil
}

// ApplyTo copies the state onto h.
func (s HabitState) ApplyTo(h *models.Habit) {
	h.Streak = s.Streak
	h.LongestStreak = s.LongestStreak
	if s.LastCompleted == nil {
		h.LastCompleted = nil
		return
	}
	last := *s.LastCompleted
	h.LastCompleted = &last
}

// ApplyCompletion returns the habit state after ev. The input state is never modified.
//
// A not-completed event changes nothing. A completed event is measured in periods of the habit's
// cadence against LastCompleted: the next period extends the streak, the same period is a no-op,
// a later period restarts it at 1 and an earlier one (a back-filled date) leaves it alone.
func ApplyCompletion(state HabitState, ev CompletionEvent) (HabitState, error) {
	if _, err := ParseFrequency(string(state.Frequency)); err != nil {
		return state, err
	}
	if ev.Date.IsZero() {
		return state, fmt.Errorf("%w: completion date is required", ErrValidation)
	}

	next := state
	if state.LastCompleted != nil {
		last := *state.LastCompleted
		next.LastCompleted = &last
	}
	if !ev.IsCompleted {
		return next, nil
	}

	date := CivilDate(ev.Date)
	if state.LastCompleted == nil {
		next.Streak = 1
	} else {
		switch d := PeriodDistance(state.Frequency, *state.LastCompleted, date); {
		case d == 0, d < 0:
			return next, nil
		case d == 1:
			next.Streak = state.Streak + 1
		default:
			next.Streak = 1
		}
	}

	next.LastCompleted = &date
	if next.Streak > next.LongestStreak {
		next.LongestStreak = next.Streak
	}
	return next, nil
}

// PeriodDistance counts cadence periods from a to b. Weeks are ISO weeks (Monday based) and are
// measured between their Mondays, so week 1 of a year follows the last week of the previous one.
func PeriodDistance(freq Frequency, a, b time.Time) int {
	switch freq {
	case Weekly:
		return daysBetween(WeekStart(a), WeekStart(b)) / 7
	case Monthly:
		return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	default:
		return daysBetween(a, b)
	}
}
