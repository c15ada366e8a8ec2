package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/habitly/models"
	"github.com/cppla/habitly/utils"
)

const (
	maxHabitNameRunes = 128
	maxNoteRunes      = 2000

	// DefaultLeaderboardSize is used when the caller passes no limit.
	DefaultLeaderboardSize = 10
	// MaxLeaderboardSize caps a leaderboard page.
	MaxLeaderboardSize = 100
)

// Tracker orchestrates habits, the completion ledger and the streak engine.
type Tracker struct {
	db     *gorm.DB
	ledger *Ledger
}

// NewTracker creates a tracker on db.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db, ledger: NewLedger(db)}
}

// Ledger exposes the underlying completion ledger.
func (t *Tracker) Ledger() *Ledger {
	return t.ledger
}

// ToggleResult is the outcome of a completion toggle.
type ToggleResult struct {
	HabitID         uint                   `json:"habit_id"`
	Streak          int                    `json:"streak"`
	LongestStreak   int                    `json:"longest_streak"`
	LastCompleted   *time.Time             `json:"last_completed"`
	Record          models.HabitCompletion `json:"completion"`
	NewAchievements []models.Achievement   `json:"new_achievements"`
}

// AnalyticsReport is every habit series of a user plus the per-frequency charts.
type AnalyticsReport struct {
	WindowDays int                           `json:"window_days"`
	Start      string                        `json:"start_date"`
	End        string                        `json:"end_date"`
	Habits     []HabitSeries                 `json:"habits"`
	Charts     map[Frequency]FrequencyCharts `json:"charts"`
	Rates      map[uint]float64              `json:"completion_rates"`
}

// LeaderboardEntry ranks one user.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	TotalStreak   int    `json:"total_streak"`
	LongestStreak int    `json:"longest_streak"`
	HabitCount    int    `json:"habit_count"`
}

// Suggestion is a ready-made habit users can adopt.
type Suggestion struct {
	Name        string    `json:"habit_name"`
	Frequency   Frequency `json:"habit_frequency"`
	Description string    `json:"description"`
}

// Suggestions is the built-in catalog.
var Suggestions = []Suggestion{
	{Name: "Drink 8 glasses of water", Frequency: Daily, Description: "Stay hydrated through the day"},
	{Name: "Read for 20 minutes", Frequency: Daily, Description: "A few pages every day"},
	{Name: "Meditate", Frequency: Daily, Description: "Ten quiet minutes"},
	{Name: "Go for a long run", Frequency: Weekly, Description: "One longer effort each week"},
	{Name: "Call family", Frequency: Weekly, Description: "Keep in touch"},
	{Name: "Review budget", Frequency: Monthly, Description: "Check spending against plan"},
	{Name: "Declutter a room", Frequency: Monthly, Description: "One space at a time"},
}

// SuggestionByName finds a catalog entry, ignoring case.
func SuggestionByName(name string) (Suggestion, bool) {
	for _, s := range Suggestions {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return Suggestion{}, false
}

func cleanHabitName(name string) (string, error) {
	cleaned := strings.TrimSpace(utils.SanitizeText(name))
	n := utf8.RuneCountInString(cleaned)
	if n == 0 {
		return "", fmt.Errorf("%w: habit name is required", ErrValidation)
	}
	if n > maxHabitNameRunes {
		return "", fmt.Errorf("%w: habit name must be at most %d characters", ErrValidation, maxHabitNameRunes)
	}
	return cleaned, nil
}

// CreateHabit adds a habit for userID with a zero streak.
func (t *Tracker) CreateHabit(ctx context.Context, userID uint, name, frequency string) (models.Habit, error) {
	cleaned, err := cleanHabitName(name)
	if err != nil {
		return models.Habit{}, err
	}
	freq, err := ParseFrequency(frequency)
	if err != nil {
		return models.Habit{}, err
	}

	habit := models.Habit{UserID: userID, Name: cleaned, Frequency: string(freq)}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(&habit).Error; err != nil {
		return models.Habit{}, fmt.Errorf("%w: create habit: %v", ErrPersistence, err)
	}
	return habit, nil
}

// AddSuggestion creates a habit from the catalog entry called name.
func (t *Tracker) AddSuggestion(ctx context.Context, userID uint, name string) (models.Habit, error) {
	s, ok := SuggestionByName(name)
	if !ok {
		return models.Habit{}, fmt.Errorf("%w: suggestion %q", ErrNotFound, name)
	}
	return t.CreateHabit(ctx, userID, s.Name, string(s.Frequency))
}

// ListHabits returns the user's habits, oldest first.
func (t *Tracker) ListHabits(ctx context.Context, userID uint) ([]models.Habit, error) {
	var habits []models.Habit
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("%w: list habits: %v", ErrPersistence, err)
	}
	return habits, nil
}

// GetHabit loads a habit owned by userID. Habits of other users are reported as not found.
func (t *Tracker) GetHabit(ctx context.Context, userID, habitID uint) (models.Habit, error) {
	return loadHabit(t.db.WithContext(ctx), userID, habitID)
}

func loadHabit(db *gorm.DB, userID, habitID uint) (models.Habit, error) {
	var habit models.Habit
	err := db.Where("id = ? AND user_id = ?", habitID, userID).First(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Habit{}, fmt.Errorf("%w: habit %d", ErrNotFound, habitID)
	}
	if err != nil {
		return models.Habit{}, fmt.Errorf("%w: load habit: %v", ErrPersistence, err)
	}
	return habit, nil
}

// ToggleCompletion records the status of habitID on date and updates the habit's streak.
//
// The habit row is locked for the whole transaction, so concurrent toggles of the same habit are
// serialized. Any failure rolls back the ledger write, the habit update and new badges together.
func (t *Tracker) ToggleCompletion(ctx context.Context, userID, habitID uint, date time.Time, isCompleted bool) (ToggleResult, error) {
	if date.IsZero() {
		return ToggleResult{}, fmt.Errorf("%w: completion date is required", ErrValidation)
	}
	day := CivilDate(date)

	var result ToggleResult
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var habit models.Habit
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", habitID, userID).
			First(&habit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: habit %d", ErrNotFound, habitID)
		}
		if err != nil {
			return fmt.Errorf("%w: lock habit: %v", ErrPersistence, err)
		}

		state, err := StateOf(habit)
		if err != nil {
			return err
		}

		ledger := t.ledger.WithTx(tx)
		record, err := ledger.Upsert(ctx, habitID, userID, day, isCompleted)
		if err != nil {
			return err
		}

		next, err := ApplyCompletion(state, CompletionEvent{Date: day, IsCompleted: isCompleted})
		if err != nil {
			return err
		}
		next.ApplyTo(&habit)

		var last interface{}
		if habit.LastCompleted != nil {
			last = *habit.LastCompleted
		}
		err = tx.Model(&models.Habit{}).Where("id = ?", habit.ID).Updates(map[string]interface{}{
			"streak":         habit.Streak,
			"longest_streak": habit.LongestStreak,
			"last_completed": last,
			"updated_at":     time.Now().UTC(),
		}).Error
		if err != nil {
			return fmt.Errorf("%w: save habit: %v", ErrPersistence, err)
		}

		var earned []models.Achievement
		if isCompleted {
			earned, err = awardBadges(ctx, tx, ledger, habit, next)
			if err != nil {
				return err
			}
		}

		result = ToggleResult{
			HabitID:         habit.ID,
			Streak:          habit.Streak,
			LongestStreak:   habit.LongestStreak,
			LastCompleted:   habit.LastCompleted,
			Record:          record,
			NewAchievements: earned,
		}
		return nil
	})
	if err != nil {
		return ToggleResult{}, asKind(err)
	}
	return result, nil
}

// awardBadges inserts the badges the toggle unlocked. A badge another request already inserted is skipped.
func awardBadges(ctx context.Context, tx *gorm.DB, ledger *Ledger, habit models.Habit, state HabitState) ([]models.Achievement, error) {
	total, err := ledger.CountCompleted(ctx, habit.UserID)
	if err != nil {
		return nil, err
	}

	var codes []string
	if err := tx.Model(&models.Achievement{}).Where("user_id = ?", habit.UserID).Pluck("code", &codes).Error; err != nil {
		return nil, fmt.Errorf("%w: load achievements: %v", ErrPersistence, err)
	}
	have := make(map[string]bool, len(codes))
	for _, c := range codes {
		have[c] = true
	}

	progress := Progress{Frequency: state.Frequency, Streak: state.Streak, TotalCompleted: total}
	now := time.Now().UTC()
	earned := make([]models.Achievement, 0)
	for _, b := range EvaluateBadges(progress, have) {
		a := models.Achievement{
			UserID:      habit.UserID,
			Code:        b.Code,
			HabitID:     habit.ID,
			Name:        b.Name,
			Description: b.Description,
			BadgeIcon:   b.Icon,
			EarnedAt:    now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&a)
		if res.Error != nil {
			return nil, fmt.Errorf("%w: award %s: %v", ErrPersistence, b.Code, res.Error)
		}
		if res.RowsAffected > 0 {
			earned = append(earned, a)
		}
	}
	return earned, nil
}

// asKind keeps classified errors and reports everything else as a persistence failure.
func asKind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConfiguration, ErrPersistence} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// DeleteHabit removes a habit with its notes and ledger rows in one transaction.
func (t *Tracker) DeleteHabit(ctx context.Context, userID, habitID uint) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHabit(tx, userID, habitID); err != nil {
			return err
		}
		if err := tx.Where("habit_id = ? AND user_id = ?", habitID, userID).Delete(&models.HabitNote{}).Error; err != nil {
			return fmt.Errorf("%w: delete notes: %v", ErrPersistence, err)
		}
		if err := t.ledger.WithTx(tx).DeleteForHabit(ctx, habitID, userID); err != nil {
			return err
		}
		if err := tx.Where("id = ? AND user_id = ?", habitID, userID).Delete(&models.Habit{}).Error; err != nil {
			return fmt.Errorf("%w: delete habit: %v", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return asKind(err)
	}
	return nil
}

// HabitSeries builds the windowed series of one habit ending at now.
func (t *Tracker) HabitSeries(ctx context.Context, userID, habitID uint, windowDays int, now time.Time) (HabitSeries, error) {
	start, end, err := WindowBounds(now, windowDays)
	if err != nil {
		return HabitSeries{}, err
	}
	habit, err := t.GetHabit(ctx, userID, habitID)
	if err != nil {
		return HabitSeries{}, err
	}
	records, err := t.ledger.RangeForHabit(ctx, habitID, userID, start, end)
	if err != nil {
		return HabitSeries{}, err
	}
	series, err := BuildSeries([]models.Habit{habit}, records, now, windowDays)
	if err != nil {
		return HabitSeries{}, err
	}
	return series[0], nil
}

// Analytics builds the series of every habit of the user and groups them by frequency.
func (t *Tracker) Analytics(ctx context.Context, userID uint, windowDays int, now time.Time) (AnalyticsReport, error) {
	start, end, err := WindowBounds(now, windowDays)
	if err != nil {
		return AnalyticsReport{}, err
	}
	habits, err := t.ListHabits(ctx, userID)
	if err != nil {
		return AnalyticsReport{}, err
	}
	records, err := t.ledger.Range(ctx, userID, start, end)
	if err != nil {
		return AnalyticsReport{}, err
	}
	series, err := BuildSeries(habits, records, now, windowDays)
	if err != nil {
		return AnalyticsReport{}, err
	}

	rates := make(map[uint]float64, len(series))
	for _, s := range series {
		done := 0
		for _, v := range s.Completion {
			done += v
		}
		if len(s.Completion) > 0 {
			rates[s.HabitID] = float64(done) / float64(len(s.Completion))
		}
	}

	return AnalyticsReport{
		WindowDays: windowDays,
		Start:      FormatDate(start),
		End:        FormatDate(end),
		Habits:     series,
		Charts:     GroupByFrequency(series),
		Rates:      rates,
	}, nil
}

// Leaderboard ranks users by the sum of their current streaks, then longest streak, then name.
func (t *Tracker) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit == 0 {
		limit = DefaultLeaderboardSize
	}
	if limit < 1 || limit > MaxLeaderboardSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxLeaderboardSize)
	}

	var rows []LeaderboardEntry
	err := t.db.WithContext(ctx).
		Table("users").
		Select("users.id AS user_id, users.username, COALESCE(SUM(habits.streak), 0) AS total_streak, COALESCE(MAX(habits.longest_streak), 0) AS longest_streak, COUNT(habits.id) AS habit_count").
		Joins("JOIN habits ON habits.user_id = users.id").
		Group("users.id, users.username").
		Order("total_streak DESC, longest_streak DESC, users.username ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard: %v", ErrPersistence, err)
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// Achievements lists the badges the user has earned, in the order earned.
func (t *Tracker) Achievements(ctx context.Context, userID uint) ([]models.Achievement, error) {
	var out []models.Achievement
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: list achievements: %v", ErrPersistence, err)
	}
	return out, nil
}

// AddNote attaches a sanitized note to one of the user's habits.
func (t *Tracker) AddNote(ctx context.Context, userID, habitID uint, text string) (models.HabitNote, error) {
	cleaned := strings.TrimSpace(utils.Sanitize(text))
	n := utf8.RuneCountInString(cleaned)
	if n == 0 {
		return models.HabitNote{}, fmt.Errorf("%w: note is required", ErrValidation)
	}
	if n > maxNoteRunes {
		return models.HabitNote{}, fmt.Errorf("%w: note must be at most %d characters", ErrValidation, maxNoteRunes)
	}
	if _, err := t.GetHabit(ctx, userID, habitID); err != nil {
		return models.HabitNote{}, err
	}

	note := models.HabitNote{HabitID: habitID, UserID: userID, Note: cleaned, CreatedAt: time.Now().UTC()}
	if err := t.db.WithContext(ctx).Create(&note).Error; err != nil {
		return models.HabitNote{}, fmt.Errorf("%w: create note: %v", ErrPersistence, err)
	}
	return note, nil
}

// ListNotes returns a habit's notes, newest first.
func (t *Tracker) ListNotes(ctx context.Context, userID, habitID uint) ([]models.HabitNote, error) {
	if _, err := t.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	var notes []models.HabitNote
	err := t.db.WithContext(ctx).
		Where("habit_id = ? AND user_id = ?", habitID, userID).
		Order("created_at DESC, id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list notes: %v", ErrPersistence, err)
	}
	return notes, nil
}

// OnDate reports every habit of the user with its status on date.
func (t *Tracker) OnDate(ctx context.Context, userID uint, date time.Time) ([]HabitStatus, error) {
	return t.ledger.OnDate(ctx, userID, date)
}

// Range lists the user's ledger rows between start and end inclusive.
func (t *Tracker) Range(ctx context.Context, userID uint, start, end time.Time) ([]models.HabitCompletion, error) {
	return t.ledger.Range(ctx, userID, start, end)
}

// ExportCSV writes the user's ledger rows between start and end as CSV with a header row.
func (t *Tracker) ExportCSV(ctx context.Context, userID uint, start, end time.Time, w io.Writer) error {
	rows, err := t.ledger.Range(ctx, userID, start, end)
	if err != nil {
		return err
	}
	habits, err := t.ListHabits(ctx, userID)
	if err != nil {
		return err
	}
	byID := make(map[uint]models.Habit, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
	}

	out := csv.NewWriter(w)
	if err := out.Write([]string{"date", "habit_id", "habit", "frequency", "completed"}); err != nil {
		return err
	}
	for _, r := range rows {
		h := byID[r.HabitID]
		record := []string{
			FormatDate(r.CompletionDate),
			strconv.FormatUint(uint64(r.HabitID), 10),
			h.Name,
			h.Frequency,
			strconv.FormatBool(r.IsCompleted),
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// Stats are the public counters.
type Stats struct {
	Users          int64 `json:"users"`
	Habits         int64 `json:"habits"`
	CompletedToday int64 `json:"completed_today"`
}

// Stats counts users, habits and completions on today's date.
func (t *Tracker) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var s Stats
	db := t.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&s.Users).Error; err != nil {
		return Stats{}, fmt.Errorf("%w: count users: %v", ErrPersistence, err)
	}
	if err := db.Model(&models.Habit{}).Count(&s.Habits).Error; err != nil {
		return Stats{}, fmt.Errorf("%w: count habits: %v", ErrPersistence, err)
	}
	n, err := t.ledger.CountCompletedOn(ctx, now)
	if err != nil {
		return Stats{}, err
	}
	s.CompletedToday = n
	return s, nil
}
