package models

import "time"

// UserStreak: one row per user, row-locked for the duration of a daily
// claim. Dates are UTC midnights; WeekStartDate is the Monday of the
// current ISO week and drives the weekly freeze reset.
type UserStreak struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	CurrentStreak int        `gorm:"default:0" json:"current_streak"`
	LastClaimDate *time.Time `json:"last_claim_date,omitempty"`

	WeeklyFreezesLeft int       `gorm:"default:0" json:"weekly_freezes_left"`
	WeekStartDate     time.Time `json:"week_start_date"`

	LongestStreak   int   `gorm:"default:0" json:"longest_streak"`
	TotalClaims     int64 `gorm:"default:0" json:"total_claims"`
	TotalRecoveries int64 `gorm:"default:0" json:"total_recoveries"`

	Timestamps
}
