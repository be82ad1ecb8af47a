package models

import "time"

// Timeframe is the rollup window for leaderboard rankings.
type Timeframe string

const (
	TimeframeAllTime Timeframe = "ALL_TIME"
	TimeframeMonthly Timeframe = "MONTHLY"
	TimeframeWeekly  Timeframe = "WEEKLY"
	TimeframeDaily   Timeframe = "DAILY"
)

// AllTimeframes lists every timeframe the materializer rebuilds.
var AllTimeframes = []Timeframe{TimeframeAllTime, TimeframeMonthly, TimeframeWeekly, TimeframeDaily}

// LeaderboardCacheEntry: materialized ranking row, entirely rebuilt by
// the materializer. Ranks are 1..N with non-increasing TotalXP.
type LeaderboardCacheEntry struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_lb_user_frame;not null" json:"user_id"`
	Timeframe Timeframe `gorm:"type:varchar(16);uniqueIndex:idx_lb_user_frame;index;not null" json:"timeframe"`

	Rank        int       `gorm:"not null" json:"rank"`
	TotalXP     int64     `gorm:"not null" json:"total_xp"`
	GeneratedAt time.Time `gorm:"not null" json:"generated_at"`
}

// LeaderboardSettings is the singleton guarded by a row-level upsert.
type LeaderboardSettings struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	DisplayCount     int       `gorm:"default:10" json:"display_count"`
	ActiveTimeframe  Timeframe `gorm:"type:varchar(16);default:'ALL_TIME'" json:"active_timeframe"`
	IsEnabled        bool      `gorm:"default:true" json:"is_enabled"`
	LastCacheRefresh *time.Time `json:"last_cache_refresh,omitempty"`

	Timestamps
}
