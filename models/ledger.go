package models

import "time"

// ActivityKind identifies why XP moved. Free-form by convention; the
// constants below are reserved and treated specially by the engines.
type ActivityKind string

const (
	ActivitySurveyCompleted       ActivityKind = "SURVEY_COMPLETED"
	ActivityDailyRewardClaimed    ActivityKind = "DAILY_REWARD_CLAIMED"
	ActivityWeeklyCompletionBonus ActivityKind = "WEEKLY_COMPLETION_BONUS"
	ActivityUserReferral          ActivityKind = "USER_REFERRAL"
	ActivityReferralBonus         ActivityKind = "REFERRAL_BONUS"
	ActivityAffiliateConversion   ActivityKind = "AFFILIATE_CONVERSION"
	ActivityAffiliateBonus        ActivityKind = "AFFILIATE_BONUS"
	ActivitySeasonPassReward      ActivityKind = "SEASON_PASS_REWARD"
	ActivityXPSpent               ActivityKind = "XP_SPENT"
	ActivityProfileTagsUpdated    ActivityKind = "PROFILE_TAGS_UPDATED"
	ActivityRegistrationCompleted ActivityKind = "REGISTRATION_COMPLETED"
)

// ShareActivityKind builds the reserved SHARE_<KIND> activity identifier.
func ShareActivityKind(kind ShareKind) ActivityKind {
	return ActivityKind("SHARE_" + string(kind))
}

// LedgerEntry is one row per XP-affecting event. Append-only: the source
// of truth for balances and lifetime totals. Spends carry negative amounts.
type LedgerEntry struct {
	ID           string       `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string       `gorm:"index:idx_ledger_user_time;not null" json:"user_id"`
	ActivityKind ActivityKind `gorm:"type:varchar(64);not null;index" json:"activity_kind"`
	Amount       int64        `gorm:"not null" json:"amount"`

	RelatedSurveyID *string `gorm:"index" json:"related_survey_id,omitempty"`
	RelatedItemID   *string `json:"related_item_id,omitempty"`
	BusinessID      *string `gorm:"index" json:"business_id,omitempty"`

	// Free-text note for rows without an entity reference, e.g. the
	// stated reason of a spend.
	Description string `gorm:"type:varchar(255)" json:"description,omitempty"`

	Timestamp time.Time `gorm:"index:idx_ledger_user_time;not null" json:"timestamp"`
}
