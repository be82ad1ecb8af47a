package models

import "time"

// AffiliateLink is the business-scoped variant of a referral link, with
// optional TTL, per-link XP overrides and a tag attached to converted users.
type AffiliateLink struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	BusinessID string `gorm:"index;not null" json:"business_id"`
	Code       string `gorm:"uniqueIndex;not null" json:"code"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Overrides for the singleton referral settings; nil means default.
	ReferrerXPOverride *int64 `json:"referrer_xp_override,omitempty"`
	ReferredXPOverride *int64 `json:"referred_xp_override,omitempty"`

	AttachTagID *string `json:"attach_tag_id,omitempty"`

	Timestamps
}

// AffiliateConversion records a signup attributed to an affiliate link.
type AffiliateConversion struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	AffiliateLinkID string `gorm:"index;not null" json:"affiliate_link_id"`
	BusinessID      string `gorm:"index;not null" json:"business_id"`
	ReferredUserID  string `gorm:"uniqueIndex;not null" json:"referred_user_id"`

	ReferredXPAwarded int64 `gorm:"default:0" json:"referred_xp_awarded"`
	TagAttached       bool  `gorm:"default:false" json:"tag_attached"`

	Timestamps
}
