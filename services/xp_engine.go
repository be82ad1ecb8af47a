package services

import (
	"errors"
	"log"
	"math"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GrantRefs carries the optional entity references attached to a ledger row.
type GrantRefs struct {
	SurveyID   *string
	ItemID     *string
	BusinessID *string
}

// GrantResult is returned from every successful XP grant.
type GrantResult struct {
	BaseXP      int64           `json:"base_xp"`
	FinalXP     int64           `json:"final_xp"`
	Multiplier  float64         `json:"multiplier"`
	NewBalance  int64           `json:"new_balance"`
	TotalEarned int64           `json:"total_earned"`
	NewBadges   []models.Badge  `json:"new_badges"`
	SeasonResult *SeasonAdvance `json:"season_result,omitempty"`
}

// FirstActivityNotifier is how the XP engine tells the referral engine
// that a referred user completed their first reward-earning activity.
// Wired after construction to keep the engine graph acyclic.
type FirstActivityNotifier interface {
	MarkFirstActivityCompleted(userID string) error
}

// XPEngine is the single entry point through which any activity grants
// or spends XP. All other engines call Grant/Spend; nothing else writes
// ledger rows or touches user balances.
type XPEngine struct {
	DB      *gorm.DB
	Seasons *SeasonPassService
	Badges  *BadgeService

	notifier FirstActivityNotifier
}

func NewXPEngine(db *gorm.DB, seasons *SeasonPassService, badges *BadgeService) *XPEngine {
	return &XPEngine{DB: db, Seasons: seasons, Badges: badges}
}

// SetFirstActivityNotifier wires the referral engine in after construction.
func (s *XPEngine) SetFirstActivityNotifier(n FirstActivityNotifier) {
	s.notifier = n
}

// trackedFirstActivities are the kinds that satisfy the referral
// "first activity" verification gate.
var trackedFirstActivities = map[models.ActivityKind]bool{
	models.ActivitySurveyCompleted: true,
}

// Grant applies the season multiplier, writes the ledger row at the final
// amount, updates the user's balance and lifetime total, advances season
// progress and awards newly qualified badges, all in one transaction.
func (s *XPEngine) Grant(userID string, baseXP int64, activity models.ActivityKind, refs GrantRefs) (*GrantResult, error) {
	if baseXP <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *GrantResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.GrantTx(tx, userID, baseXP, activity, refs)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Outside the transaction: satisfy the referral first-activity gate.
	// The referral engine commits its own rows; a failure here must not
	// undo the grant.
	if s.notifier != nil && trackedFirstActivities[activity] {
		if err := s.notifier.MarkFirstActivityCompleted(userID); err != nil {
			log.Printf("⚠️ first-activity notification failed for %s: %v", userID, err)
		}
	}

	return result, nil
}

// GrantTx is the in-transaction grant path, shared with engines that
// deliver XP as part of a larger atomic operation (season reward claims,
// daily rewards).
func (s *XPEngine) GrantTx(tx *gorm.DB, userID string, baseXP int64, activity models.ActivityKind, refs GrantRefs) (*GrantResult, error) {
	if baseXP <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()

	// Serialize all balance updates for this user.
	var user models.User
	if err := forUpdate(tx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	multiplier, season, err := s.Seasons.MultiplierFor(tx, userID, now)
	if err != nil {
		return nil, err
	}

	finalXP := int64(math.Floor(float64(baseXP) * multiplier))

	entry := models.LedgerEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		ActivityKind:    activity,
		Amount:          finalXP,
		RelatedSurveyID: refs.SurveyID,
		RelatedItemID:   refs.ItemID,
		BusinessID:      refs.BusinessID,
		Timestamp:       now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	user.XPBalance += finalXP
	user.TotalXPEarned += finalXP
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"xp_balance":      user.XPBalance,
			"total_xp_earned": user.TotalXPEarned,
		}).Error; err != nil {
		return nil, err
	}

	var seasonResult *SeasonAdvance
	if season != nil {
		seasonResult, err = s.Seasons.AdvanceProgress(tx, userID, season, finalXP)
		if err != nil {
			return nil, err
		}
	}

	// Badge failures are non-fatal: the next grant finds and awards the
	// badge again (Award is idempotent).
	newBadges, badgeErr := s.Badges.AwardTx(tx, userID, user.TotalXPEarned)
	if badgeErr != nil {
		log.Printf("⚠️ badge award failed for %s: %v", userID, badgeErr)
		newBadges = nil
	}

	return &GrantResult{
		BaseXP:       baseXP,
		FinalXP:      finalXP,
		Multiplier:   multiplier,
		NewBalance:   user.XPBalance,
		TotalEarned:  user.TotalXPEarned,
		NewBadges:    newBadges,
		SeasonResult: seasonResult,
	}, nil
}

// Spend deducts from the spendable balance and emits a negative ledger
// entry. Rejects non-positive amounts and overdrafts.
func (s *XPEngine) Spend(userID string, amount int64, reason string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return s.SpendTx(tx, userID, amount, reason)
	})
}

// SpendTx is the in-transaction spend path.
func (s *XPEngine) SpendTx(tx *gorm.DB, userID string, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	var user models.User
	if err := forUpdate(tx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.XPBalance < amount {
		return ErrInsufficientBalance
	}

	entry := models.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		ActivityKind: models.ActivityXPSpent,
		Amount:       -amount,
		Description:  reason,
		Timestamp:    time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	newBalance := user.XPBalance - amount
	if newBalance < 0 {
		// Ledger integrity violation. Never repair silently.
		return errors.New("fatal: negative balance after spend")
	}

	return tx.Model(&models.User{}).Where("id = ?", userID).
		Update("xp_balance", newBalance).Error
}

// RecentLedger returns the newest ledger rows for the user.
func (s *XPEngine) RecentLedger(userID string, limit int) ([]models.LedgerEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var entries []models.LedgerEntry
	err := s.DB.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Summary is the XP read model: balance, lifetime, recent ledger and the
// next badge the user is working toward.
func (s *XPEngine) Summary(userID string) (map[string]interface{}, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	recent, err := s.RecentLedger(userID, 10)
	if err != nil {
		return nil, err
	}

	nextBadge, progressPct, err := s.Badges.NextBadge(userID, user.TotalXPEarned)
	if err != nil {
		return nil, err
	}

	summary := map[string]interface{}{
		"xp_balance":      user.XPBalance,
		"total_xp_earned": user.TotalXPEarned,
		"recent_ledger":   recent,
	}
	if nextBadge != nil {
		summary["next_badge"] = map[string]interface{}{
			"badge":        nextBadge,
			"progress_pct": progressPct,
		}
	}
	return summary, nil
}
