package models

import "time"

// Badge: catalog entity, ordered by XP threshold.
type Badge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description,omitempty"`
	IconURL     string `gorm:"type:text" json:"icon_url,omitempty"`
	XPThreshold int64  `gorm:"not null;index" json:"xp_threshold"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: awarded instance, exactly once per (user, badge).
type UserBadge struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeID  string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_id"`
	EarnedAt time.Time `gorm:"autoCreateTime" json:"earned_at"`

	Badge Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}
