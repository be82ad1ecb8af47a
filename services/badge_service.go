package services

import (
	"errors"
	"fmt"
	"os"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SharePrompt is presentation data attached to a freshly awarded badge:
// where to share it and what the share pays. Not persisted.
type SharePrompt struct {
	ShareKind   models.ShareKind `json:"share_kind"`
	URLTemplate string           `json:"url_template"`
	XPReward    int64            `json:"xp_reward"`
}

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// Award finds every badge whose threshold the user's lifetime total now
// meets and awards the missing ones. Idempotent: a second call in
// succession awards nothing.
func (s *BadgeService) Award(userID string) ([]models.Badge, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var awarded []models.Badge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		awarded, err = s.AwardTx(tx, userID, user.TotalXPEarned)
		return err
	})
	return awarded, err
}

// AwardTx awards inside an existing transaction. When multiple thresholds
// cross in one call, all are awarded together.
func (s *BadgeService) AwardTx(tx *gorm.DB, userID string, totalXPEarned int64) ([]models.Badge, error) {
	var missing []models.Badge
	err := tx.Where("xp_threshold <= ?", totalXPEarned).
		Where("id NOT IN (?)",
			tx.Model(&models.UserBadge{}).Select("badge_id").Where("user_id = ?", userID),
		).
		Order("xp_threshold ASC").
		Find(&missing).Error
	if err != nil {
		return nil, err
	}

	for _, badge := range missing {
		ub := models.UserBadge{
			ID:      uuid.NewString(),
			UserID:  userID,
			BadgeID: badge.ID,
		}
		if err := tx.Create(&ub).Error; err != nil {
			return nil, err
		}
	}

	return missing, nil
}

// GrantSpecific awards one badge directly (season reward delivery).
// Already-owned badges are treated as handled.
func (s *BadgeService) GrantSpecific(tx *gorm.DB, userID, badgeID string) error {
	var count int64
	if err := tx.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.UserBadge{
		ID:      uuid.NewString(),
		UserID:  userID,
		BadgeID: badgeID,
	}).Error
}

// SharePromptFor builds the share descriptor for a newly awarded badge,
// or nil if sharing is disabled or the badge was already shared.
func (s *BadgeService) SharePromptFor(userID string, badge models.Badge) *SharePrompt {
	if os.Getenv("SHARING_DISABLED") == "true" {
		return nil
	}

	var shared int64
	s.DB.Model(&models.UserShare{}).
		Where("user_id = ? AND kind = ? AND related_object_id = ?", userID, models.ShareBadge, badge.ID).
		Count(&shared)
	if shared > 0 {
		return nil
	}

	return &SharePrompt{
		ShareKind:   models.ShareBadge,
		URLTemplate: fmt.Sprintf("/share/badge/%s", badge.ID),
		XPReward:    shareXPRewards[models.ShareBadge],
	}
}

// Overview lists earned badges plus upcoming ones with progress toward
// their thresholds.
func (s *BadgeService) Overview(userID string) (map[string]interface{}, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var earned []models.UserBadge
	if err := s.DB.Preload("Badge").
		Where("user_id = ?", userID).
		Order("earned_at ASC").
		Find(&earned).Error; err != nil {
		return nil, err
	}

	earnedIDs := make(map[string]bool, len(earned))
	for _, ub := range earned {
		earnedIDs[ub.BadgeID] = true
	}

	var all []models.Badge
	if err := s.DB.Order("xp_threshold ASC").Find(&all).Error; err != nil {
		return nil, err
	}

	type upcoming struct {
		Badge       models.Badge `json:"badge"`
		ProgressPct float64      `json:"progress_pct"`
	}
	var pending []upcoming
	for _, b := range all {
		if earnedIDs[b.ID] {
			continue
		}
		pct := 100.0
		if b.XPThreshold > 0 {
			pct = float64(user.TotalXPEarned) / float64(b.XPThreshold) * 100
			if pct > 100 {
				pct = 100
			}
		}
		pending = append(pending, upcoming{Badge: b, ProgressPct: pct})
	}

	// Earned badges the user has not shared yet get a share prompt.
	var prompts []SharePrompt
	for _, ub := range earned {
		if p := s.SharePromptFor(userID, ub.Badge); p != nil {
			prompts = append(prompts, *p)
		}
	}

	return map[string]interface{}{
		"earned":        earned,
		"upcoming":      pending,
		"share_prompts": prompts,
	}, nil
}

// NextBadge returns the lowest unearned badge threshold and how far the
// user is toward it.
func (s *BadgeService) NextBadge(userID string, totalXPEarned int64) (*models.Badge, float64, error) {
	var next models.Badge
	err := s.DB.Where("id NOT IN (?)",
		s.DB.Model(&models.UserBadge{}).Select("badge_id").Where("user_id = ?", userID),
	).
		Order("xp_threshold ASC").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	pct := 100.0
	if next.XPThreshold > 0 {
		pct = float64(totalXPEarned) / float64(next.XPThreshold) * 100
		if pct > 100 {
			pct = 100
		}
	}
	return &next, pct, nil
}
