package models

import "time"

// HabitCompletion is one ledger fact: whether a habit was done on a calendar date.
// The (habit_id, user_id, completion_date) triple is unique; toggling again updates the row.
type HabitCompletion struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	HabitID        uint      `gorm:"not null;uniqueIndex:idx_habit_completion_key,priority:1" json:"habit_id"`
	UserID         uint      `gorm:"not null;index;uniqueIndex:idx_habit_completion_key,priority:2" json:"user_id"`
	CompletionDate time.Time `gorm:"type:date;not null;index;uniqueIndex:idx_habit_completion_key,priority:3" json:"completion_date"`
	IsCompleted    bool      `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Habit          Habit     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}
