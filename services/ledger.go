package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/habitly/models"
)

// Ledger stores per-date completion facts keyed by (habit, user, date).
type Ledger struct {
	db *gorm.DB
}

// NewLedger binds a ledger to db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a ledger that runs on tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// HabitStatus is a habit with its completion status on one date.
type HabitStatus struct {
	HabitID     uint   `json:"habit_id"`
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	Streak      int    `json:"streak"`
	IsCompleted bool   `json:"is_completed"`
}

// Upsert writes the completion status of a key. A concurrent writer of the same key turns the
// insert into an update, so the key never holds more than one row and the last write wins.
func (l *Ledger) Upsert(ctx context.Context, habitID, userID uint, date time.Time, isCompleted bool) (models.HabitCompletion, error) {
	if date.IsZero() {
		return models.HabitCompletion{}, fmt.Errorf("%w: completion date is required", ErrValidation)
	}
	day := CivilDate(date)
	now := time.Now().UTC()

	row := models.HabitCompletion{
		HabitID:        habitID,
		UserID:         userID,
		CompletionDate: day,
		IsCompleted:    isCompleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "user_id"}, {Name: "completion_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_completed": isCompleted, "updated_at": now}),
	}).Create(&row).Error
	if err != nil {
		return models.HabitCompletion{}, fmt.Errorf("%w: upsert completion: %v", ErrPersistence, err)
	}

	stored, ok, err := l.Get(ctx, habitID, userID, day)
	if err != nil {
		return models.HabitCompletion{}, err
	}
	if !ok {
		return models.HabitCompletion{}, fmt.Errorf("%w: completion missing after upsert", ErrPersistence)
	}
	return stored, nil
}

// Get reads one key. The bool is false when no row exists.
func (l *Ledger) Get(ctx context.Context, habitID, userID uint, date time.Time) (models.HabitCompletion, bool, error) {
	var row models.HabitCompletion
	err := l.db.WithContext(ctx).
		Where("habit_id = ? AND user_id = ? AND completion_date = ?", habitID, userID, CivilDate(date)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.HabitCompletion{}, false, nil
	}
	if err != nil {
		return models.HabitCompletion{}, false, fmt.Errorf("%w: load completion: %v", ErrPersistence, err)
	}
	return row, true, nil
}

// Range lists the user's rows with start <= date <= end, oldest first.
func (l *Ledger) Range(ctx context.Context, userID uint, start, end time.Time) ([]models.HabitCompletion, error) {
	return l.rangeQuery(ctx, l.db.Where("user_id = ?", userID), start, end)
}

// RangeForHabit is Range restricted to one habit.
func (l *Ledger) RangeForHabit(ctx context.Context, habitID, userID uint, start, end time.Time) ([]models.HabitCompletion, error) {
	return l.rangeQuery(ctx, l.db.Where("habit_id = ? AND user_id = ?", habitID, userID), start, end)
}

func (l *Ledger) rangeQuery(ctx context.Context, scope *gorm.DB, start, end time.Time) ([]models.HabitCompletion, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	from, to := CivilDate(start), CivilDate(end)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrValidation)
	}

	var rows []models.HabitCompletion
	err := scope.WithContext(ctx).
		Where("completion_date >= ? AND completion_date <= ?", from, to).
		Order("completion_date ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list completions: %v", ErrPersistence, err)
	}
	return rows, nil
}

// OnDate reports every habit of the user with its status on date. Habits without a row are not completed.
func (l *Ledger) OnDate(ctx context.Context, userID uint, date time.Time) ([]HabitStatus, error) {
	var out []HabitStatus
	err := l.db.WithContext(ctx).
		Table("habits").
		Select("habits.id AS habit_id, habits.name, habits.frequency, habits.streak, COALESCE(habit_completions.is_completed, ?) AS is_completed", false).
		Joins("LEFT JOIN habit_completions ON habit_completions.habit_id = habits.id AND habit_completions.user_id = habits.user_id AND habit_completions.completion_date = ?", CivilDate(date)).
		Where("habits.user_id = ?", userID).
		Order("habits.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load habits on date: %v", ErrPersistence, err)
	}
	return out, nil
}

// CountCompleted counts the user's completed rows across all habits.
func (l *Ledger) CountCompleted(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&models.HabitCompletion{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count completions: %v", ErrPersistence, err)
	}
	return n, nil
}

// CountCompletedOn counts completed rows of every user on date.
func (l *Ledger) CountCompletedOn(ctx context.Context, date time.Time) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&models.HabitCompletion{}).
		Where("completion_date = ? AND is_completed = ?", CivilDate(date), true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count completions: %v", ErrPersistence, err)
	}
	return n, nil
}

// DeleteForHabit removes every row of the habit. Call it inside the habit deletion transaction.
func (l *Ledger) DeleteForHabit(ctx context.Context, habitID, userID uint) error {
	err := l.db.WithContext(ctx).
		Where("habit_id = ? AND user_id = ?", habitID, userID).
		Delete(&models.HabitCompletion{}).Error
	if err != nil {
		return fmt.Errorf("%w: delete completions: %v", ErrPersistence, err)
	}
	return nil
}
