package models

import "time"

// ShareKind identifies a one-shot shareable event.
type ShareKind string

const (
	ShareJoin             ShareKind = "JOIN_SHARE"
	ShareBadge            ShareKind = "BADGE_SHARE"
	ShareRewardRedemption ShareKind = "REWARD_REDEMPTION_SHARE"
	ShareRaffleWin        ShareKind = "RAFFLE_WIN_SHARE"
	ShareRaffleEntry      ShareKind = "RAFFLE_ENTRY_SHARE"
)

// UserShare: exactly one per (user, kind, related object).
type UserShare struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string    `gorm:"uniqueIndex:idx_user_share;not null" json:"user_id"`
	Kind            ShareKind `gorm:"type:varchar(32);uniqueIndex:idx_user_share;not null" json:"kind"`
	RelatedObjectID string    `gorm:"uniqueIndex:idx_user_share" json:"related_object_id,omitempty"`

	XPAwarded int64     `gorm:"default:0" json:"xp_awarded"`
	SharedAt  time.Time `gorm:"autoCreateTime" json:"shared_at"`
}

// ShareAnalyticsEvent records the share funnel: prompt shown,
// button clicked, share completed.
type ShareAnalyticsEvent struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string    `gorm:"index;not null" json:"user_id"`
	Kind            ShareKind `gorm:"type:varchar(32);not null" json:"kind"`
	Event           string    `gorm:"type:varchar(32);not null" json:"event"`
	RelatedObjectID string    `json:"related_object_id,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

const (
	ShareEventPromptShown   = "prompt_shown"
	ShareEventButtonClicked = "button_clicked"
	ShareEventCompleted     = "share_completed"
)
