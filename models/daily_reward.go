package models

import "time"

// DailyRewardKind: what a calendar day pays out.
type DailyRewardKind string

const (
	DailyRewardXP          DailyRewardKind = "XP"
	DailyRewardRaffleEntry DailyRewardKind = "RAFFLE_ENTRY"
)

// DailyRewardWeekConfiguration is the template for a 7-day calendar.
// At most one active at a time; when none is active a built-in default
// (60 XP per day, 10 XP recovery, no bonus) applies.
type DailyRewardWeekConfiguration struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	WeekIdentifier string `gorm:"uniqueIndex;not null" json:"week_identifier"`
	IsActive       bool   `gorm:"default:false;index" json:"is_active"`

	RecoveryXPCost   int64 `gorm:"default:10" json:"recovery_xp_cost"`
	WeeklyFreezeCount int  `gorm:"default:1" json:"weekly_freeze_count"`

	// Bonus for completing all seven days
	CompletionBonusXP int64 `gorm:"default:0" json:"completion_bonus_xp"`

	Timestamps

	Days []DailyReward `gorm:"foreignKey:WeekConfigID" json:"days,omitempty"`
}

// DailyReward specifies one reward per weekday (1 = Monday .. 7 = Sunday).
// Exactly one of XPAmount / RaffleItemID is non-null, per Kind.
type DailyReward struct {
	ID           string          `gorm:"primaryKey;type:uuid" json:"id"`
	WeekConfigID string          `gorm:"uniqueIndex:idx_week_day;not null" json:"week_config_id"`
	DayOfWeek    int             `gorm:"uniqueIndex:idx_week_day;not null;check:day_of_week BETWEEN 1 AND 7" json:"day_of_week"`
	Kind         DailyRewardKind `gorm:"type:varchar(32);not null" json:"kind"`
	XPAmount     *int64          `json:"xp_amount,omitempty"`
	RaffleItemID *string         `json:"raffle_item_id,omitempty"`
}

// UserDailyRewardClaim: unique per (user, claim date). ClaimDate is a
// UTC midnight timestamp; all calendar arithmetic is UTC.
type UserDailyRewardClaim struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_user_claim_date;not null" json:"user_id"`
	ClaimDate time.Time `gorm:"uniqueIndex:idx_user_claim_date;not null" json:"claim_date"`

	WasRecovered       bool   `gorm:"default:false" json:"was_recovered"`
	RecoveryXPCost     *int64 `json:"recovery_xp_cost,omitempty"`
	XPAwarded          int64  `gorm:"default:0" json:"xp_awarded"`
	RaffleEntryCreated bool   `gorm:"default:false" json:"raffle_entry_created"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DailyRewardClaimAttempt is the immutable audit row: one per attempt,
// successful or not. The primary forensic record for claim disputes.
type DailyRewardClaimAttempt struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index:idx_attempt_user_time;not null" json:"user_id"`
	ClaimDate time.Time `gorm:"not null" json:"claim_date"`

	WasSuccessful bool   `gorm:"index:idx_attempt_success_time" json:"was_successful"`
	FailureReason string `gorm:"type:text" json:"failure_reason,omitempty"`

	RewardKind   string `gorm:"type:varchar(32)" json:"reward_kind,omitempty"`
	RewardAmount int64  `json:"reward_amount,omitempty"`
	WasRecovered bool   `gorm:"default:false" json:"was_recovered"`

	IPAddress string `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`

	Timestamp time.Time `gorm:"index:idx_attempt_user_time;index:idx_attempt_success_time;not null" json:"timestamp"`
}

// WeekCompletionReward: awarded once per (user, ISO week).
type WeekCompletionReward struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_user_week;not null" json:"user_id"`
	WeekStartDate time.Time `gorm:"uniqueIndex:idx_user_week;not null" json:"week_start_date"`
	XPAwarded     int64     `json:"xp_awarded"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
