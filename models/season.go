package models

import (
	"time"
)

// PassTier is the purchased level of a season pass.
type PassTier string

const (
	TierNone     PassTier = "NONE"
	TierLunar    PassTier = "LUNAR"
	TierTotality PassTier = "TOTALITY"
)

// RewardKind describes what a season reward delivers.
type RewardKind string

const (
	RewardKindXP              RewardKind = "XP"
	RewardKindBadge           RewardKind = "BADGE"
	RewardKindRaffleEntry     RewardKind = "RAFFLE_ENTRY"
	RewardKindMarketplaceItem RewardKind = "MARKETPLACE_ITEM"
	RewardKindCustom          RewardKind = "CUSTOM"
)

// Season is a time-bounded campaign. At most one active at a time.
// Prices are cents; multipliers are >= 1.0.
type Season struct {
	ID       string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string     `gorm:"not null" json:"name"`
	Slug     string     `gorm:"uniqueIndex" json:"slug"`
	StartsAt time.Time  `gorm:"not null" json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	IsActive bool       `gorm:"default:false;index" json:"is_active"`

	LunarPrice    int64 `gorm:"not null" json:"lunar_price"`
	TotalityPrice int64 `gorm:"not null" json:"totality_price"`

	LunarMultiplier    float64 `gorm:"default:1.25" json:"lunar_multiplier"`
	TotalityMultiplier float64 `gorm:"default:2.0" json:"totality_multiplier"`

	Timestamps

	Levels []SeasonLevel `gorm:"foreignKey:SeasonID" json:"levels,omitempty"`
}

// SeasonLevel: cumulative XP to reach level N is the sum of
// XPRequiredForLevel over levels 1..N.
type SeasonLevel struct {
	ID                 string `gorm:"primaryKey;type:uuid" json:"id"`
	SeasonID           string `gorm:"uniqueIndex:idx_season_level;not null" json:"season_id"`
	LevelNumber        int    `gorm:"uniqueIndex:idx_season_level;not null" json:"level_number"`
	XPRequiredForLevel int64  `gorm:"not null" json:"xp_required_for_level"`

	Rewards []SeasonReward `gorm:"foreignKey:SeasonLevelID" json:"rewards,omitempty"`
}

// SeasonReward is a reward descriptor gated behind a level and a tier.
// Exactly one payload field is meaningful for a given Kind.
type SeasonReward struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	SeasonLevelID string     `gorm:"uniqueIndex:idx_level_tier;not null" json:"season_level_id"`
	Tier          PassTier   `gorm:"type:varchar(16);uniqueIndex:idx_level_tier;not null" json:"tier"`
	Kind          RewardKind `gorm:"type:varchar(32);not null" json:"kind"`

	XPAmount          *int64  `json:"xp_amount,omitempty"`
	BadgeID           *string `json:"badge_id,omitempty"`
	RaffleItemID      *string `json:"raffle_item_id,omitempty"`
	MarketplaceItemID *string `json:"marketplace_item_id,omitempty"`
	CustomPayload     string  `gorm:"type:text" json:"custom_payload,omitempty"`
}

// UserSeasonPass: unique per (user, season). Immutable except for the
// LUNAR -> TOTALITY upgrade which flips tier and adds the price delta.
type UserSeasonPass struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_user_season_pass;not null" json:"user_id"`
	SeasonID      string    `gorm:"uniqueIndex:idx_user_season_pass;not null" json:"season_id"`
	Tier          PassTier  `gorm:"type:varchar(16);not null" json:"tier"`
	PurchasedAt   time.Time `gorm:"not null" json:"purchased_at"`
	PurchasePrice int64     `gorm:"not null" json:"purchase_price"`
	PaymentRef    string    `gorm:"index" json:"payment_ref,omitempty"`

	Timestamps
}

// UserSeasonProgress: unique per (user, season), created lazily on first
// in-season XP gain. ClaimedRewards is a typed set serialized to jsonb;
// mutations must reassign a fresh slice so the column is flagged changed.
type UserSeasonProgress struct {
	ID                string   `gorm:"primaryKey;type:uuid" json:"id"`
	UserID            string   `gorm:"uniqueIndex:idx_user_season_prog;not null" json:"user_id"`
	SeasonID          string   `gorm:"uniqueIndex:idx_user_season_prog;not null" json:"season_id"`
	CurrentXPInSeason int64    `gorm:"default:0" json:"current_xp_in_season"`
	CurrentLevel      int      `gorm:"default:0" json:"current_level"`
	ClaimedRewards    []string `gorm:"serializer:json" json:"claimed_rewards"`

	Timestamps
}

// HasClaimed reports whether rewardID is already in the claimed set.
func (p *UserSeasonProgress) HasClaimed(rewardID string) bool {
	for _, id := range p.ClaimedRewards {
		if id == rewardID {
			return true
		}
	}
	return false
}
