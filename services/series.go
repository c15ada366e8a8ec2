package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/cppla/habitly/models"
)

const (
	// DefaultWindowDays is the analytics window when the caller does not choose one.
	DefaultWindowDays = 30
	// MaxWindowDays bounds the analytics window to one (leap) year.
	MaxWindowDays = 366
)

// Dataset is one plotted line.
type Dataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// Chart is the structure handed to the charting layer.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// HabitSeries holds the bucketed completion and streak values of one habit over a window.
// Labels, Completion and Streak always have the same length.
type HabitSeries struct {
	HabitID    uint      `json:"habit_id"`
	Name       string    `json:"name"`
	Frequency  Frequency `json:"frequency"`
	Labels     []string  `json:"labels"`
	Completion []int     `json:"completion"`
	Streak     []int     `json:"streak"`
}

// Chart renders s with a completion and a streak dataset.
func (s HabitSeries) Chart() Chart {
	return Chart{
		Labels: s.Labels,
		Datasets: []Dataset{
			{Label: "completion", Data: s.Completion},
			{Label: "streak", Data: s.Streak},
		},
	}
}

// FrequencyCharts merges every habit of one cadence, one dataset per habit.
type FrequencyCharts struct {
	Completion Chart `json:"completion"`
	Streak     Chart `json:"streak"`
}

// WindowDates lists the windowDays calendar dates ending on now's date, oldest first.
func WindowDates(now time.Time, windowDays int) ([]time.Time, error) {
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, fmt.Errorf("%w: window must be between 1 and %d days", ErrValidation, MaxWindowDays)
	}
	if now.IsZero() {
		return nil, fmt.Errorf("%w: reference time is required", ErrValidation)
	}
	end := CivilDate(now)
	dates := make([]time.Time, windowDays)
	for i := range dates {
		dates[i] = end.AddDate(0, 0, i-windowDays+1)
	}
	return dates, nil
}

// WindowBounds returns the first and last date of the window.
func WindowBounds(now time.Time, windowDays int) (time.Time, time.Time, error) {
	dates, err := WindowDates(now, windowDays)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return dates[0], dates[len(dates)-1], nil
}

type bucket struct {
	start time.Time
	label string
}

func bucketStart(freq Frequency, t time.Time) time.Time {
	switch freq {
	case Weekly:
		return WeekStart(t)
	case Monthly:
		return MonthStart(t)
	default:
		return CivilDate(t)
	}
}

func bucketLabel(freq Frequency, start time.Time) string {
	if freq == Monthly {
		return start.Format(MonthLayout)
	}
	return start.Format(DateLayout)
}

// bucketsFor partitions the window dates into consecutive cadence buckets.
func bucketsFor(freq Frequency, dates []time.Time) []bucket {
	out := make([]bucket, 0, len(dates))
	for _, d := range dates {
		start := bucketStart(freq, d)
		if n := len(out); n > 0 && out[n-1].start.Equal(start) {
			continue
		}
		out = append(out, bucket{start: start, label: bucketLabel(freq, start)})
	}
	return out
}

// BuildSeries computes the windowed series for each habit, in the order given.
//
// Only completed records inside the window count. The streak line replays ApplyCompletion from an
// empty state over those records, so it can differ from the habit's live streak, which covers the
// full history. A bucket without a completion shows 0 on both lines.
func BuildSeries(habits []models.Habit, records []models.HabitCompletion, now time.Time, windowDays int) ([]HabitSeries, error) {
	dates, err := WindowDates(now, windowDays)
	if err != nil {
		return nil, err
	}
	first, last := dates[0], dates[len(dates)-1]

	completed := make(map[uint][]time.Time)
	for _, r := range records {
		if !r.IsCompleted {
			continue
		}
		d := CivilDate(r.CompletionDate)
		if d.Before(first) || d.After(last) {
			continue
		}
		completed[r.HabitID] = append(completed[r.HabitID], d)
	}

	out := make([]HabitSeries, 0, len(habits))
	for _, h := range habits {
		freq, err := ParseFrequency(h.Frequency)
		if err != nil {
			return nil, fmt.Errorf("habit %d: %w", h.ID, err)
		}

		buckets := bucketsFor(freq, dates)
		index := make(map[time.Time]int, len(buckets))
		series := HabitSeries{
			HabitID:    h.ID,
			Name:       h.Name,
			Frequency:  freq,
			Labels:     make([]string, len(buckets)),
			Completion: make([]int, len(buckets)),
			Streak:     make([]int, len(buckets)),
		}
		for i, b := range buckets {
			index[b.start] = i
			series.Labels[i] = b.label
		}

		days := completed[h.ID]
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

		state := HabitState{Frequency: freq}
		for _, d := range days {
			state, err = ApplyCompletion(state, CompletionEvent{Date: d, IsCompleted: true})
			if err != nil {
				return nil, err
			}
			i := index[bucketStart(freq, d)]
			series.Completion[i] = 1
			series.Streak[i] = state.Streak
		}
		out = append(out, series)
	}
	return out, nil
}

// GroupByFrequency merges series of the same cadence into one completion chart and one streak
// chart. Cadences without habits are omitted.
func GroupByFrequency(series []HabitSeries) map[Frequency]FrequencyCharts {
	grouped := make(map[Frequency]FrequencyCharts)
	for _, s := range series {
		charts, ok := grouped[s.Frequency]
		if !ok {
			charts.Completion.Labels = s.Labels
			charts.Streak.Labels = s.Labels
		}
		charts.Completion.Datasets = append(charts.Completion.Datasets, Dataset{Label: s.Name, Data: s.Completion})
		charts.Streak.Datasets = append(charts.Streak.Datasets, Dataset{Label: s.Name, Data: s.Streak})
		grouped[s.Frequency] = charts
	}
	return grouped
}
