package services

import (
	"errors"
	"testing"
	"time"

	"github.com/cppla/habitly/models"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return d
}

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	d := mustDate(t, value)
	return &d
}

type step struct {
	date       string
	completed  bool
	wantStreak int
	wantLast   string
}

func replay(t *testing.T, state HabitState, steps []step) HabitState {
	t.Helper()
	for i, s := range steps {
		next, err := ApplyCompletion(state, CompletionEvent{Date: mustDate(t, s.date), IsCompleted: s.completed})
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, s.date, err)
		}
		if next.Streak != s.wantStreak {
			t.Fatalf("step %d (%s): streak = %d, want %d", i, s.date, next.Streak, s.wantStreak)
		}
		got := ""
		if next.LastCompleted != nil {
			got = FormatDate(*next.LastCompleted)
		}
		if got != s.wantLast {
			t.Fatalf("step %d (%s): last_completed = %q, want %q", i, s.date, got, s.wantLast)
		}
		state = next
	}
	return state
}

func TestApplyCompletionDaily(t *testing.T) {
	t.Parallel()

	state := replay(t, HabitState{Frequency: Daily}, []step{
		{date: "2024-01-01", completed: true, wantStreak: 1, wantLast: "2024-01-01"},
		{date: "2024-01-02", completed: true, wantStreak: 2, wantLast: "2024-01-02"},
		{date: "2024-01-04", completed: true, wantStreak: 1, wantLast: "2024-01-04"},
	})
	if state.LongestStreak != 2 {
		t.Fatalf("longest streak = %d, want 2", state.LongestStreak)
	}
}

func TestApplyCompletionWeekly(t *testing.T) {
	t.Parallel()

	start := HabitState{Frequency: Weekly, Streak: 1, LongestStreak: 1, LastCompleted: datePtr(t, "2024-01-01")}
	replay(t, start, []step{
		{date: "2024-01-08", completed: true, wantStreak: 2, wantLast: "2024-01-08"},
		{date: "2024-01-10", completed: true, wantStreak: 2, wantLast: "2024-01-08"},
		{date: "2024-01-29", completed: true, wantStreak: 1, wantLast: "2024-01-29"},
	})
}

func TestApplyCompletionWeeklyAcrossISOYear(t *testing.T) {
	t.Parallel()

	// 2024-12-30 is the Monday of ISO week 1 of 2025; 2024-12-27 is in week 52 of 2024.
	start := HabitState{Frequency: Weekly, Streak: 3, LongestStreak: 3, LastCompleted: datePtr(t, "2024-12-27")}
	replay(t, start, []step{
		{date: "2025-01-01", completed: true, wantStreak: 4, wantLast: "2025-01-01"},
		{date: "2025-01-06", completed: true, wantStreak: 5, wantLast: "2025-01-06"},
	})
}

func TestApplyCompletionMonthlyAcrossYear(t *testing.T) {
	t.Parallel()

	replay(t, HabitState{Frequency: Monthly}, []step{
		{date: "2023-12-15", completed: true, wantStreak: 1, wantLast: "2023-12-15"},
		{date: "2024-01-10", completed: true, wantStreak: 2, wantLast: "2024-01-10"},
		{date: "2024-01-31", completed: true, wantStreak: 2, wantLast: "2024-01-10"},
		{date: "2024-03-01", completed: true, wantStreak: 1, wantLast: "2024-03-01"},
	})
}

func TestApplyCompletionNoOps(t *testing.T) {
	t.Parallel()

	base := HabitState{Frequency: Daily, Streak: 4, LongestStreak: 6, LastCompleted: datePtr(t, "2024-05-10")}
	tests := []struct {
		name string
		ev   CompletionEvent
	}{
		{name: "not completed", ev: CompletionEvent{Date: mustDate(t, "2024-05-11"), IsCompleted: false}},
		{name: "same day", ev: CompletionEvent{Date: mustDate(t, "2024-05-10"), IsCompleted: true}},
		{name: "backdated", ev: CompletionEvent{Date: mustDate(t, "2024-05-01"), IsCompleted: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ApplyCompletion(base, tt.ev)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got.Streak != 4 || got.LongestStreak != 6 {
				t.Fatalf("state changed: %+v", got)
			}
			if !got.LastCompleted.Equal(*base.LastCompleted) {
				t.Fatalf("last completed = %v, want %v", got.LastCompleted, base.LastCompleted)
			}
		})
	}
}

func TestApplyCompletionIdempotent(t *testing.T) {
	t.Parallel()

	ev := CompletionEvent{Date: mustDate(t, "2024-02-29"), IsCompleted: true}
	once, err := ApplyCompletion(HabitState{Frequency: Daily}, ev)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	twice, err := ApplyCompletion(once, ev)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if once.Streak != twice.Streak || !once.LastCompleted.Equal(*twice.LastCompleted) {
		t.Fatalf("second apply changed state: %+v -> %+v", once, twice)
	}
}

func TestApplyCompletionDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	last := mustDate(t, "2024-01-01")
	state := HabitState{Frequency: Daily, Streak: 1, LongestStreak: 1, LastCompleted: &last}
	if _, err := ApplyCompletion(state, CompletionEvent{Date: mustDate(t, "2024-01-02"), IsCompleted: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if state.Streak != 1 || FormatDate(last) != "2024-01-01" {
		t.Fatalf("input mutated: %+v last=%s", state, FormatDate(last))
	}
}

func TestApplyCompletionErrors(t *testing.T) {
	t.Parallel()

	if _, err := ApplyCompletion(HabitState{Frequency: "hourly"}, CompletionEvent{Date: mustDate(t, "2024-01-01"), IsCompleted: true}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("unknown frequency: got %v, want ErrConfiguration", err)
	}
	if _, err := ApplyCompletion(HabitState{Frequency: Daily}, CompletionEvent{IsCompleted: true}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero date: got %v, want ErrValidation", err)
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "daily", want: Daily},
		{in: " Weekly ", want: Weekly},
		{in: "MONTHLY", want: Monthly},
		{in: "yearly", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFrequency(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("ParseFrequency(%q) error = %v, want ErrConfiguration", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFrequency(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "2024-13-01", "01/02/2024", "2024-1-2"} {
		if _, err := ParseDate(in); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseDate(%q) error = %v, want ErrValidation", in, err)
		}
	}
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("parse leap day: %v", err)
	}
	if d.Location() != time.UTC || d.Hour() != 0 {
		t.Fatalf("parsed date not a UTC midnight: %v", d)
	}
}

func TestPeriodDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		freq Frequency
		a, b string
		want int
	}{
		{Daily, "2024-02-28", "2024-03-01", 2},
		{Daily, "2024-01-05", "2024-01-01", -4},
		{Weekly, "2024-01-07", "2024-01-08", 1},
		{Weekly, "2024-01-08", "2024-01-14", 0},
		{Weekly, "2024-12-27", "2025-01-01", 1},
		{Monthly, "2023-12-31", "2024-01-01", 1},
		{Monthly, "2024-01-01", "2024-12-31", 11},
	}
	for _, tt := range tests {
		got := PeriodDistance(tt.freq, mustDate(t, tt.a), mustDate(t, tt.b))
		if got != tt.want {
			t.Errorf("PeriodDistance(%s, %s, %s) = %d, want %d", tt.freq, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestStateOfRoundTrip(t *testing.T) {
	t.Parallel()

	habit := models.Habit{Frequency: "weekly", Streak: 2, LongestStreak: 5, LastCompleted: datePtr(t, "2024-03-04")}
	state, err := StateOf(habit)
	if err != nil {
		t.Fatalf("state of: %v", err)
	}
	var out models.Habit
	state.ApplyTo(&out)
	if out.Streak != 2 || out.LongestStreak != 5 || !out.LastCompleted.Equal(*habit.LastCompleted) {
		t.Fatalf("round trip lost data: %+v", out)
	}
	if out.LastCompleted == habit.LastCompleted {
		t.Fatal("ApplyTo shares the LastCompleted pointer")
	}

	if _, err := StateOf(models.Habit{Frequency: "fortnightly"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("unknown frequency: got %v", err)
	}
}
