package models

import "time"

// ReferralQueueStatus is the lifecycle of a pending reward distribution.
type ReferralQueueStatus string

const (
	QueuePending     ReferralQueueStatus = "PENDING"
	QueueApproved    ReferralQueueStatus = "APPROVED"
	QueueRejected    ReferralQueueStatus = "REJECTED"
	QueueDistributed ReferralQueueStatus = "DISTRIBUTED"
)

// ReferralLink: one per user, URL-safe 8-byte code.
type ReferralLink struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string `gorm:"uniqueIndex;not null" json:"user_id"`
	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Timestamps
}

// Referral links a referred user back to the link that brought them in.
// XP amounts are zero until the queued reward is distributed.
type Referral struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferralLinkID string `gorm:"index;not null" json:"referral_link_id"`
	ReferrerID     string `gorm:"index;not null" json:"referrer_id"`
	ReferredUserID string `gorm:"uniqueIndex;not null" json:"referred_user_id"`

	ReferrerXPAwarded int64 `gorm:"default:0" json:"referrer_xp_awarded"`
	ReferredXPAwarded int64 `gorm:"default:0" json:"referred_xp_awarded"`

	Timestamps
}

// ReferralSecurityLog captures the fraud signals collected at signup,
// one per referral/conversion. Suspicious rows survive retention cleanup.
type ReferralSecurityLog struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ReferralID     *string `gorm:"index" json:"referral_id,omitempty"`
	ConversionID   *string `gorm:"index" json:"conversion_id,omitempty"`
	ReferrerID     string  `gorm:"index" json:"referrer_id"`
	ReferredUserID string  `gorm:"index" json:"referred_user_id"`

	IPAddress         string `gorm:"type:varchar(64);index" json:"ip_address"`
	UserAgent         string `gorm:"type:text" json:"user_agent"`
	DeviceFingerprint string `gorm:"type:varchar(64);index" json:"device_fingerprint"`
	EmailDomain       string `gorm:"type:varchar(255)" json:"email_domain"`
	IsDisposableEmail bool   `gorm:"default:false" json:"is_disposable_email"`

	LinkClickedAt       *time.Time `json:"link_clicked_at,omitempty"`
	TimeToSignupSeconds *int64     `json:"time_to_signup_seconds,omitempty"`

	FraudScore   int      `gorm:"default:0" json:"fraud_score"`
	IsSuspicious bool     `gorm:"default:false;index" json:"is_suspicious"`
	FraudReasons []string `gorm:"serializer:json" json:"fraud_reasons"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// ReferralRewardQueue: one per pending reward. Distribution happens only
// once every gate is satisfied and the cooldown has elapsed.
type ReferralRewardQueue struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferralID     string `gorm:"index;not null" json:"referral_id"`
	ReferrerID     string `gorm:"index;not null" json:"referrer_id"`
	ReferredUserID string `gorm:"index;not null" json:"referred_user_id"`

	ReferrerXPPending int64 `gorm:"default:0" json:"referrer_xp_pending"`
	ReferredXPPending int64 `gorm:"default:0" json:"referred_xp_pending"`

	RequiresEmailVerification bool `gorm:"default:true" json:"requires_email_verification"`
	RequiresFirstActivity     bool `gorm:"default:true" json:"requires_first_activity"`
	FirstActivityCompleted    bool `gorm:"default:false" json:"first_activity_completed"`
	FraudCheckPassed          bool `gorm:"default:false" json:"fraud_check_passed"`
	ManualReviewRequired      bool `gorm:"default:false" json:"manual_review_required"`

	Status                 ReferralQueueStatus `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	FraudScore             int                 `gorm:"default:0" json:"fraud_score"`
	DistributionScheduledAt time.Time          `gorm:"index;not null" json:"distribution_scheduled_at"`
	DistributedAt          *time.Time          `json:"distributed_at,omitempty"`

	Timestamps
}

// ReferralRateLimit: rolling daily and weekly referral counters per user.
// Counters reset on the civil UTC day/ISO-week boundary, checked on every
// read or write. Five violations block the referrer for seven days.
type ReferralRateLimit struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	DailyCount     int       `gorm:"default:0" json:"daily_count"`
	DailyResetAt   time.Time `json:"daily_reset_at"`
	WeeklyCount    int       `gorm:"default:0" json:"weekly_count"`
	WeeklyResetAt  time.Time `json:"weekly_reset_at"`

	DailyLimit  int `gorm:"default:10" json:"daily_limit"`
	WeeklyLimit int `gorm:"default:30" json:"weekly_limit"`

	LimitViolations int        `gorm:"default:0" json:"limit_violations"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"`

	Timestamps
}

// ReferralSettings is the singleton carrying referral XP parameters.
type ReferralSettings struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	UserRewardXP   int64  `gorm:"default:200" json:"user_reward_xp"`
	NewUserBonusXP int64  `gorm:"default:100" json:"new_user_bonus_xp"`
	UserXPCap      int64  `gorm:"default:5000" json:"user_xp_cap"`

	Timestamps
}
