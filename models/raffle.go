package models

import "time"

// RaffleEntry is the destination row for RAFFLE_ENTRY rewards coming out
// of the daily calendar and season passes. The raffle draw itself is an
// external collaborator; this core only creates entries.
type RaffleEntry struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string `gorm:"index;not null" json:"user_id"`
	RaffleItemID string `gorm:"index;not null" json:"raffle_item_id"`
	Source       string `gorm:"type:varchar(32)" json:"source"` // daily_reward, season_pass

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
