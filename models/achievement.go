package models

import "time"

// Achievement is a badge a user earned once.
type Achievement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_achievement_user_code" json:"user_id"`
	Code        string    `gorm:"size:32;not null;uniqueIndex:idx_achievement_user_code" json:"code"`
	HabitID     uint      `json:"habit_id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	BadgeIcon   string    `gorm:"size:32" json:"badge_icon"`
	EarnedAt    time.Time `json:"earned_date"`
}
