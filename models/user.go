package models

// User is the end-consumer identity for the rewards core.
// XPBalance and TotalXPEarned are maintained by the XP engine only;
// every mutation pairs with a ledger write in the same transaction.
type User struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`
	IsActive      bool   `gorm:"default:true" json:"is_active"`

	// Spendable balance (signed ledger sum, never negative)
	XPBalance int64 `gorm:"default:0" json:"xp_balance"`
	// Lifetime total (sum of positive ledger amounts, monotonic)
	TotalXPEarned int64 `gorm:"default:0" json:"total_xp_earned"`

	Timestamps
}
