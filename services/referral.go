package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"eclipse-rewards-system/models"
	"eclipse-rewards-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	referralBlockViolations = 5
	referralBlockDuration   = 7 * 24 * time.Hour

	securityLogRetention = 90 * 24 * time.Hour
)

// AttributionResult reports a successful signup attribution.
type AttributionResult struct {
	ReferralID        string `json:"referral_id,omitempty"`
	ConversionID      string `json:"conversion_id,omitempty"`
	QueueID           string `json:"queue_id"`
	FraudScore        int    `json:"fraud_score"`
	IsSuspicious      bool   `json:"is_suspicious"`
	CooldownHours     int    `json:"cooldown_hours"`
	ManualReview      bool   `json:"manual_review_required"`
	ReferrerXPPending int64  `json:"referrer_xp_pending"`
	ReferredXPPending int64  `json:"referred_xp_pending"`
}

// ReferralService issues codes, attributes signups through the fraud
// pipeline and distributes matured rewards.
type ReferralService struct {
	DB *gorm.DB
	XP *XPEngine

	now func() time.Time
}

func NewReferralService(db *gorm.DB, xp *XPEngine) *ReferralService {
	return &ReferralService{DB: db, XP: xp, now: time.Now}
}

// GetOrCreateLink returns the user's referral link, minting a unique
// URL-safe code on first use.
func (s *ReferralService) GetOrCreateLink(userID string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := s.DB.Where("user_id = ?", userID).First(&link).Error
	if err == nil {
		return &link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Regenerate until the unique constraint accepts the code.
	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.GenerateReferralCode()
		if err != nil {
			return nil, err
		}
		link = models.ReferralLink{
			ID:       uuid.NewString(),
			UserID:   userID,
			Code:     code,
			IsActive: true,
		}
		if err := s.DB.Create(&link).Error; err == nil {
			return &link, nil
		} else if !isUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not mint a unique referral code for %s", userID)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// settings loads the singleton, creating defaults on first use.
func (s *ReferralService) settings(tx *gorm.DB) (*models.ReferralSettings, error) {
	var cfg models.ReferralSettings
	err := tx.First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.ReferralSettings{
			ID:             uuid.NewString(),
			UserRewardXP:   200,
			NewUserBonusXP: 100,
			UserXPCap:      5000,
		}
		if err := tx.Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// registerAttempt enforces the referrer's rolling daily/weekly limits.
// Counters reset on the civil UTC day and ISO week boundary, checked on
// every call. Five violations block the referrer for seven days.
func (s *ReferralService) registerAttempt(tx *gorm.DB, referrerID string) error {
	now := s.now().UTC()
	today := dateUTC(now)
	monday := isoMonday(now)

	var rl models.ReferralRateLimit
	err := forUpdate(tx).Where("user_id = ?", referrerID).First(&rl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rl = models.ReferralRateLimit{
			ID:            uuid.NewString(),
			UserID:        referrerID,
			DailyResetAt:  today,
			WeeklyResetAt: monday,
			DailyLimit:    10,
			WeeklyLimit:   30,
		}
		if err := tx.Create(&rl).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if rl.BlockedUntil != nil && rl.BlockedUntil.After(now) {
		return ErrReferrerBlocked
	}

	if rl.DailyResetAt.Before(today) {
		rl.DailyCount = 0
		rl.DailyResetAt = today
	}
	if rl.WeeklyResetAt.Before(monday) {
		rl.WeeklyCount = 0
		rl.WeeklyResetAt = monday
	}

	if rl.DailyCount >= rl.DailyLimit || rl.WeeklyCount >= rl.WeeklyLimit {
		rl.LimitViolations++
		if rl.LimitViolations >= referralBlockViolations {
			blockedUntil := now.Add(referralBlockDuration)
			rl.BlockedUntil = &blockedUntil
			log.Printf("🚫 Referrer %s blocked until %s after %d limit violations", referrerID, blockedUntil.Format(time.RFC3339), rl.LimitViolations)
		}
		if err := tx.Save(&rl).Error; err != nil {
			return err
		}
		return ErrRateLimited
	}

	rl.DailyCount++
	rl.WeeklyCount++
	return tx.Save(&rl).Error
}

// remainingCap is how much referrer XP the user may still earn.
func (s *ReferralService) remainingCap(tx *gorm.DB, referrerID string, cfg *models.ReferralSettings) (int64, error) {
	var awarded int64
	err := tx.Model(&models.Referral{}).
		Where("referrer_id = ?", referrerID).
		Select("COALESCE(SUM(referrer_xp_awarded), 0)").
		Scan(&awarded).Error
	if err != nil {
		return 0, err
	}
	cap := cfg.UserXPCap - awarded
	if cap < 0 {
		cap = 0
	}
	return cap, nil
}

// AttributeSignup runs the fraud pipeline for a new user presenting a
// referral or affiliate code, and queues the delayed rewards.
func (s *ReferralService) AttributeSignup(referredUserID, code string, sig SecuritySignals) (*AttributionResult, error) {
	var result *AttributionResult

	var link models.ReferralLink
	err := s.DB.Where("code = ? AND is_active = ?", code, true).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			var txErr error
			result, txErr = s.attributeAffiliate(tx, referredUserID, code, sig)
			return txErr
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if link.UserID == referredUserID {
		return nil, ErrSelfReferral
	}

	var existing int64
	if err := s.DB.Model(&models.Referral{}).
		Where("referred_user_id = ?", referredUserID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyReferred
	}

	// The limit counters commit on their own so a recorded violation
	// survives the rejection it causes.
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		return s.registerAttempt(tx, link.UserID)
	}); err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Fraud lookups against the referrer's history.
		sameIP := false
		var lastLog models.ReferralSecurityLog
		err = tx.Where("referrer_id = ?", link.UserID).
			Order("created_at DESC").
			First(&lastLog).Error
		if err == nil {
			sameIP = lastLog.IPAddress != "" && lastLog.IPAddress == sig.IPAddress
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		fingerprint := sig.DeviceFingerprint
		if fingerprint == "" {
			fingerprint = DeviceFingerprint(sig.UserAgent, sig.IPAddress)
		}
		var fpSeen int64
		if err := tx.Model(&models.ReferralSecurityLog{}).
			Where("device_fingerprint = ? AND referred_user_id <> ?", fingerprint, referredUserID).
			Count(&fpSeen).Error; err != nil {
			return err
		}

		assessment := AssessFraud(sig, sameIP, fpSeen > 0)

		cfg, err := s.settings(tx)
		if err != nil {
			return err
		}
		cap, err := s.remainingCap(tx, link.UserID, cfg)
		if err != nil {
			return err
		}
		referrerXP := cfg.UserRewardXP
		if referrerXP > cap {
			referrerXP = cap
		}

		referral := models.Referral{
			ID:             uuid.NewString(),
			ReferralLinkID: link.ID,
			ReferrerID:     link.UserID,
			ReferredUserID: referredUserID,
		}
		if err := tx.Create(&referral).Error; err != nil {
			return err
		}

		secLog := models.ReferralSecurityLog{
			ID:                  uuid.NewString(),
			ReferralID:          &referral.ID,
			ReferrerID:          link.UserID,
			ReferredUserID:      referredUserID,
			IPAddress:           sig.IPAddress,
			UserAgent:           sig.UserAgent,
			DeviceFingerprint:   assessment.DeviceFingerprint,
			EmailDomain:         assessment.EmailDomain,
			IsDisposableEmail:   assessment.IsDisposableEmail,
			LinkClickedAt:       sig.LinkClickedAt,
			TimeToSignupSeconds: assessment.TimeToSignupSeconds,
			FraudScore:          assessment.Score,
			IsSuspicious:        assessment.IsSuspicious,
			FraudReasons:        assessment.Reasons,
		}
		if err := tx.Create(&secLog).Error; err != nil {
			return err
		}

		cooldown := distributionCooldown(assessment.Score)
		queue := models.ReferralRewardQueue{
			ID:                      uuid.NewString(),
			ReferralID:              referral.ID,
			ReferrerID:              link.UserID,
			ReferredUserID:          referredUserID,
			ReferrerXPPending:       referrerXP,
			ReferredXPPending:       cfg.NewUserBonusXP,
			RequiresEmailVerification: true,
			RequiresFirstActivity:   true,
			FraudCheckPassed:        assessment.Score < suspiciousThreshold,
			ManualReviewRequired:    assessment.Score >= suspiciousThreshold,
			Status:                  models.QueuePending,
			FraudScore:              assessment.Score,
			DistributionScheduledAt: s.now().UTC().Add(cooldown),
		}
		if err := tx.Create(&queue).Error; err != nil {
			return err
		}

		result = &AttributionResult{
			ReferralID:        referral.ID,
			QueueID:           queue.ID,
			FraudScore:        assessment.Score,
			IsSuspicious:      assessment.IsSuspicious,
			CooldownHours:     int(cooldown.Hours()),
			ManualReview:      queue.ManualReviewRequired,
			ReferrerXPPending: referrerXP,
			ReferredXPPending: cfg.NewUserBonusXP,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attributeAffiliate is the business-scoped path: same fraud pipeline,
// per-link XP overrides, no referrer XP, optional tag attach.
func (s *ReferralService) attributeAffiliate(tx *gorm.DB, referredUserID, code string, sig SecuritySignals) (*AttributionResult, error) {
	var link models.AffiliateLink
	err := tx.Where("code = ? AND is_active = ?", code, true).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeInvalid
	}
	if err != nil {
		return nil, err
	}
	if link.ExpiresAt != nil && link.ExpiresAt.Before(s.now().UTC()) {
		return nil, ErrCodeExpired
	}

	var existing int64
	if err := tx.Model(&models.AffiliateConversion{}).
		Where("referred_user_id = ?", referredUserID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyReferred
	}

	assessment := AssessFraud(sig, false, false)

	cfg, err := s.settings(tx)
	if err != nil {
		return nil, err
	}
	referredXP := cfg.NewUserBonusXP
	if link.ReferredXPOverride != nil {
		referredXP = *link.ReferredXPOverride
	}

	conversion := models.AffiliateConversion{
		ID:              uuid.NewString(),
		AffiliateLinkID: link.ID,
		BusinessID:      link.BusinessID,
		ReferredUserID:  referredUserID,
		TagAttached:     link.AttachTagID != nil,
	}
	if err := tx.Create(&conversion).Error; err != nil {
		return nil, err
	}

	secLog := models.ReferralSecurityLog{
		ID:                  uuid.NewString(),
		ConversionID:        &conversion.ID,
		ReferrerID:          link.BusinessID,
		ReferredUserID:      referredUserID,
		IPAddress:           sig.IPAddress,
		UserAgent:           sig.UserAgent,
		DeviceFingerprint:   assessment.DeviceFingerprint,
		EmailDomain:         assessment.EmailDomain,
		IsDisposableEmail:   assessment.IsDisposableEmail,
		LinkClickedAt:       sig.LinkClickedAt,
		TimeToSignupSeconds: assessment.TimeToSignupSeconds,
		FraudScore:          assessment.Score,
		IsSuspicious:        assessment.IsSuspicious,
		FraudReasons:        assessment.Reasons,
	}
	if err := tx.Create(&secLog).Error; err != nil {
		return nil, err
	}

	cooldown := distributionCooldown(assessment.Score)
	queue := models.ReferralRewardQueue{
		ID:                      uuid.NewString(),
		ReferralID:              conversion.ID,
		ReferrerID:              link.BusinessID,
		ReferredUserID:          referredUserID,
		ReferrerXPPending:       0,
		ReferredXPPending:       referredXP,
		RequiresEmailVerification: true,
		RequiresFirstActivity:   true,
		FraudCheckPassed:        assessment.Score < suspiciousThreshold,
		ManualReviewRequired:    assessment.Score >= suspiciousThreshold,
		Status:                  models.QueuePending,
		FraudScore:              assessment.Score,
		DistributionScheduledAt: s.now().UTC().Add(cooldown),
	}
	if err := tx.Create(&queue).Error; err != nil {
		return nil, err
	}

	return &AttributionResult{
		ConversionID:      conversion.ID,
		QueueID:           queue.ID,
		FraudScore:        assessment.Score,
		IsSuspicious:      assessment.IsSuspicious,
		CooldownHours:     int(cooldown.Hours()),
		ManualReview:      queue.ManualReviewRequired,
		ReferredXPPending: referredXP,
	}, nil
}

// readyForDistribution checks every gate on a queue row.
func (s *ReferralService) readyForDistribution(tx *gorm.DB, q *models.ReferralRewardQueue) (bool, error) {
	if !q.FraudCheckPassed {
		return false, nil
	}
	if q.ManualReviewRequired && q.Status != models.QueueApproved {
		return false, nil
	}
	if q.RequiresFirstActivity && !q.FirstActivityCompleted {
		return false, nil
	}
	if q.RequiresEmailVerification {
		var user models.User
		if err := tx.Where("id = ?", q.ReferredUserID).First(&user).Error; err != nil {
			return false, err
		}
		if !user.EmailVerified {
			return false, nil
		}
	}
	return true, nil
}

// DistributePendingRewards runs hourly: every matured PENDING (or
// APPROVED) row whose gates pass gets its two XP transfers. Each row
// commits on its own so a crash loses at most one item.
func (s *ReferralService) DistributePendingRewards() (int, error) {
	now := s.now().UTC()

	var due []models.ReferralRewardQueue
	if err := s.DB.Where("status IN ? AND distribution_scheduled_at <= ?",
		[]models.ReferralQueueStatus{models.QueuePending, models.QueueApproved}, now).
		Order("distribution_scheduled_at ASC").
		Find(&due).Error; err != nil {
		return 0, err
	}

	distributed := 0
	for i := range due {
		q := due[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			// Re-read under lock; another worker may have taken it.
			var row models.ReferralRewardQueue
			if err := forUpdate(tx).Where("id = ?", q.ID).First(&row).Error; err != nil {
				return err
			}
			if row.Status == models.QueueDistributed || row.Status == models.QueueRejected {
				return nil
			}

			ok, err := s.readyForDistribution(tx, &row)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			if row.ReferrerXPPending > 0 {
				if _, err := s.XP.GrantTx(tx, row.ReferrerID, row.ReferrerXPPending, models.ActivityUserReferral, GrantRefs{ItemID: &row.ReferralID}); err != nil {
					return err
				}
			}
			if row.ReferredXPPending > 0 {
				if _, err := s.XP.GrantTx(tx, row.ReferredUserID, row.ReferredXPPending, models.ActivityReferralBonus, GrantRefs{ItemID: &row.ReferralID}); err != nil {
					return err
				}
			}

			// Persist the awarded amounts. The queue's ReferralID points
			// at either a referral or an affiliate conversion; only one
			// of the two updates will match.
			if err := tx.Model(&models.Referral{}).Where("id = ?", row.ReferralID).
				Updates(map[string]interface{}{
					"referrer_xp_awarded": row.ReferrerXPPending,
					"referred_xp_awarded": row.ReferredXPPending,
				}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.AffiliateConversion{}).Where("id = ?", row.ReferralID).
				Update("referred_xp_awarded", row.ReferredXPPending).Error; err != nil {
				return err
			}

			distributedAt := s.now().UTC()
			if err := tx.Model(&models.ReferralRewardQueue{}).Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"status":         models.QueueDistributed,
					"distributed_at": distributedAt,
				}).Error; err != nil {
				return err
			}

			distributed++
			return nil
		})
		if err != nil {
			log.Printf("❌ Failed to distribute referral queue row %s: %v", q.ID, err)
		}
	}

	if distributed > 0 {
		log.Printf("💸 Distributed %d referral reward(s)", distributed)
	}
	return distributed, nil
}

// MarkFirstActivityCompleted satisfies the verification gate on every
// pending row where the user is the referred party.
func (s *ReferralService) MarkFirstActivityCompleted(userID string) error {
	return s.DB.Model(&models.ReferralRewardQueue{}).
		Where("referred_user_id = ? AND status = ? AND first_activity_completed = ?",
			userID, models.QueuePending, false).
		Update("first_activity_completed", true).Error
}

// AutoApprovePending flips the fraud gate for low-score rows whose
// schedule elapsed, in case the initial write deferred it. Runs every
// six hours.
func (s *ReferralService) AutoApprovePending() (int64, error) {
	res := s.DB.Model(&models.ReferralRewardQueue{}).
		Where("status = ? AND fraud_check_passed = ? AND fraud_score < ? AND distribution_scheduled_at <= ?",
			models.QueuePending, false, suspiciousThreshold, s.now().UTC()).
		Update("fraud_check_passed", true)
	return res.RowsAffected, res.Error
}

// ApproveQueueRow is the admin action clearing manual review. The review
// is the fraud resolution, so approval opens the fraud gate as well.
func (s *ReferralService) ApproveQueueRow(queueID string) error {
	res := s.DB.Model(&models.ReferralRewardQueue{}).
		Where("id = ? AND status = ?", queueID, models.QueuePending).
		Updates(map[string]interface{}{
			"status":             models.QueueApproved,
			"fraud_check_passed": true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// CleanupSecurityLogs archives then drops security logs older than the
// retention window, keeping suspicious rows forever.
func (s *ReferralService) CleanupSecurityLogs(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-securityLogRetention)

	var expiring []models.ReferralSecurityLog
	if err := s.DB.Where("created_at < ? AND is_suspicious = ?", cutoff, false).
		Find(&expiring).Error; err != nil {
		return 0, err
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	if utils.ArchiveEnabled() {
		key := fmt.Sprintf("security-logs/%s.json", s.now().UTC().Format("2006-01-02"))
		if _, err := utils.ArchiveJSON(ctx, key, expiring); err != nil {
			// Without the archive the rows stay; retry tomorrow.
			return 0, fmt.Errorf("security log archive failed, skipping delete: %w", err)
		}
	}

	ids := make([]string, len(expiring))
	for i, l := range expiring {
		ids[i] = l.ID
	}
	res := s.DB.Where("id IN ?", ids).Delete(&models.ReferralSecurityLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	log.Printf("🧹 Dropped %d expired security log(s)", res.RowsAffected)
	return res.RowsAffected, nil
}

// State is the user-facing referral read model: link, totals and the
// remaining XP cap.
func (s *ReferralService) State(userID string) (map[string]interface{}, error) {
	link, err := s.GetOrCreateLink(userID)
	if err != nil {
		return nil, err
	}

	var totalReferrals int64
	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_id = ?", userID).
		Count(&totalReferrals).Error; err != nil {
		return nil, err
	}

	var totalXP int64
	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_id = ?", userID).
		Select("COALESCE(SUM(referrer_xp_awarded), 0)").
		Scan(&totalXP).Error; err != nil {
		return nil, err
	}

	var pending int64
	if err := s.DB.Model(&models.ReferralRewardQueue{}).
		Where("referrer_id = ? AND status = ?", userID, models.QueuePending).
		Count(&pending).Error; err != nil {
		return nil, err
	}

	cfg, err := s.settings(s.DB)
	if err != nil {
		return nil, err
	}
	cap, err := s.remainingCap(s.DB, userID, cfg)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"code":             link.Code,
		"is_active":        link.IsActive,
		"total_referrals":  totalReferrals,
		"total_xp_earned":  totalXP,
		"pending_rewards":  pending,
		"remaining_xp_cap": cap,
	}, nil
}
