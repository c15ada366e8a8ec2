package models

import "time"

// HabitNote is a free-form journal entry attached to a habit.
type HabitNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	HabitID   uint      `gorm:"index;not null" json:"habit_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `json:"date"`
}
