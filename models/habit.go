package models

import "time"

// Habit is a user's recurring goal. Streak, LongestStreak and LastCompleted are maintained by the
// streak engine on every completion toggle and always agree with the ledger history.
type Habit struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	Name          string     `gorm:"size:128;not null" json:"name"`
	Frequency     string     `gorm:"size:16;not null" json:"frequency"`
	Streak        int        `gorm:"not null;default:0" json:"streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	LastCompleted *time.Time `gorm:"type:date" json:"last_completed"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	User          User       `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}
