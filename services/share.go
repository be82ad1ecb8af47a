package services

import (
	"errors"
	"os"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// shareXPRewards: fixed XP per share kind. Every kind pays exactly once
// per (user, kind, related object).
var shareXPRewards = map[models.ShareKind]int64{
	models.ShareJoin:             50,
	models.ShareBadge:            25,
	models.ShareRewardRedemption: 25,
	models.ShareRaffleWin:        50,
	models.ShareRaffleEntry:      10,
}

// joinShareWindow: a JOIN_SHARE only pays within this window after
// account creation.
const joinShareWindow = 7 * 24 * time.Hour

// ShareOutcome reports a confirmed share.
type ShareOutcome struct {
	ShareID   string           `json:"share_id"`
	Kind      models.ShareKind `json:"kind"`
	XPAwarded int64            `json:"xp_awarded"`
	Balance   int64            `json:"balance"`
}

// ShareService confirms one-shot social shares and records the funnel
// analytics around them.
type ShareService struct {
	DB *gorm.DB
	XP *XPEngine

	now func() time.Time
}

func NewShareService(db *gorm.DB, xp *XPEngine) *ShareService {
	return &ShareService{DB: db, XP: xp, now: time.Now}
}

func sharingDisabled() bool {
	return os.Getenv("SHARING_DISABLED") == "true"
}

// validateEligibility checks that the related object exists and belongs
// to the sharing user. JOIN_SHARE additionally enforces the account-age
// window.
func (s *ShareService) validateEligibility(tx *gorm.DB, userID string, kind models.ShareKind, relatedID string) error {
	switch kind {
	case models.ShareJoin:
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if s.now().UTC().Sub(user.CreatedAt) > joinShareWindow {
			return ErrShareNotEligible
		}
		return nil

	case models.ShareBadge:
		var count int64
		if err := tx.Model(&models.UserBadge{}).
			Where("user_id = ? AND badge_id = ?", userID, relatedID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrShareNotEligible
		}
		return nil

	case models.ShareRaffleWin, models.ShareRaffleEntry:
		var count int64
		if err := tx.Model(&models.RaffleEntry{}).
			Where("id = ? AND user_id = ?", relatedID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrShareNotEligible
		}
		return nil

	case models.ShareRewardRedemption:
		// The redemption lives in the marketplace service; the ledger
		// entry referencing it is our proof of ownership.
		var count int64
		if err := tx.Model(&models.LedgerEntry{}).
			Where("user_id = ? AND related_item_id = ?", userID, relatedID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrShareNotEligible
		}
		return nil

	default:
		return ErrShareKindUnknown
	}
}

// ConfirmShare pays out a share exactly once. The unique index on
// (user, kind, object) is the last line of defense against replays.
func (s *ShareService) ConfirmShare(userID string, kind models.ShareKind, relatedID string) (*ShareOutcome, error) {
	if sharingDisabled() {
		return nil, ErrShareNotEligible
	}
	reward, known := shareXPRewards[kind]
	if !known {
		return nil, ErrShareKindUnknown
	}

	var outcome *ShareOutcome
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserShare{}).
			Where("user_id = ? AND kind = ? AND related_object_id = ?", userID, kind, relatedID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrShareDuplicate
		}

		if err := s.validateEligibility(tx, userID, kind, relatedID); err != nil {
			return err
		}

		share := models.UserShare{
			ID:              uuid.NewString(),
			UserID:          userID,
			Kind:            kind,
			RelatedObjectID: relatedID,
			XPAwarded:       reward,
		}
		if err := tx.Create(&share).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrShareDuplicate
			}
			return err
		}

		grant, err := s.XP.GrantTx(tx, userID, reward, models.ShareActivityKind(kind), GrantRefs{ItemID: &relatedID})
		if err != nil {
			return err
		}

		if err := tx.Create(&models.ShareAnalyticsEvent{
			ID:              uuid.NewString(),
			UserID:          userID,
			Kind:            kind,
			Event:           models.ShareEventCompleted,
			RelatedObjectID: relatedID,
		}).Error; err != nil {
			return err
		}

		outcome = &ShareOutcome{
			ShareID:   share.ID,
			Kind:      kind,
			XPAwarded: grant.FinalXP,
			Balance:   grant.NewBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// RecordEvent writes a funnel analytics event (prompt shown, button
// clicked). Completed events are written by ConfirmShare itself.
func (s *ShareService) RecordEvent(userID string, kind models.ShareKind, event, relatedID string) error {
	if _, known := shareXPRewards[kind]; !known {
		return ErrShareKindUnknown
	}
	switch event {
	case models.ShareEventPromptShown, models.ShareEventButtonClicked:
	default:
		return errors.New("unknown share analytics event")
	}
	return s.DB.Create(&models.ShareAnalyticsEvent{
		ID:              uuid.NewString(),
		UserID:          userID,
		Kind:            kind,
		Event:           event,
		RelatedObjectID: relatedID,
	}).Error
}

// History lists a user's confirmed shares, newest first.
func (s *ShareService) History(userID string) ([]models.UserShare, error) {
	var shares []models.UserShare
	err := s.DB.Where("user_id = ?", userID).
		Order("shared_at DESC").
		Find(&shares).Error
	return shares, err
}
