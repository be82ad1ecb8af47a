package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// SeasonAdvance reports a level transition from one XP grant.
type SeasonAdvance struct {
	SeasonID      string `json:"season_id"`
	OldLevel      int    `json:"old_level"`
	NewLevel      int    `json:"new_level"`
	TotalInSeason int64  `json:"total_in_season"`
}

// SeasonRewardClaim is the result of a successful reward claim.
type SeasonRewardClaim struct {
	RewardID string            `json:"reward_id"`
	Kind     models.RewardKind `json:"kind"`
	XPResult *GrantResult      `json:"xp_result,omitempty"`
	BadgeID  *string           `json:"badge_id,omitempty"`
	RaffleEntryID *string      `json:"raffle_entry_id,omitempty"`
}

// SeasonPassService owns the seasonal progression state machine: tier
// multipliers, in-season totals, level transitions and reward gating.
type SeasonPassService struct {
	DB *gorm.DB

	// Set after construction;XP delivery for reward claims loops back
	// through the XP engine.
	XP *XPEngine
}

func NewSeasonPassService(db *gorm.DB) *SeasonPassService {
	return &SeasonPassService{DB: db}
}

// CreateSeason sets up a new campaign and optionally activates it,
// deactivating whichever season was active before. The URL slug is
// derived from the name.
func (s *SeasonPassService) CreateSeason(season *models.Season, activate bool) error {
	if season.Name == "" {
		return errors.New("season name is required")
	}
	if season.LunarMultiplier < 1.0 || season.TotalityMultiplier < 1.0 {
		return errors.New("season multipliers must be >= 1.0")
	}

	season.ID = uuid.NewString()
	season.Slug = slug.Make(season.Name)
	season.IsActive = false

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(season).Error; err != nil {
			return err
		}
		if activate {
			if err := tx.Model(&models.Season{}).Where("is_active = ?", true).
				Update("is_active", false).Error; err != nil {
				return err
			}
			season.IsActive = true
			if err := tx.Model(season).Update("is_active", true).Error; err != nil {
				return err
			}
			log.Printf("🌘 Season activated: %s (%s)", season.Name, season.Slug)
		}
		return nil
	})
}

// ActiveSeason returns the single active season, or nil.
func (s *SeasonPassService) ActiveSeason(tx *gorm.DB) (*models.Season, error) {
	if tx == nil {
		tx = s.DB
	}
	var season models.Season
	err := tx.Where("is_active = ?", true).First(&season).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// UserTier returns the purchased tier for (user, season), or NONE.
func (s *SeasonPassService) UserTier(tx *gorm.DB, userID, seasonID string) (models.PassTier, *models.UserSeasonPass, error) {
	if tx == nil {
		tx = s.DB
	}
	var pass models.UserSeasonPass
	err := tx.Where("user_id = ? AND season_id = ?", userID, seasonID).First(&pass).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TierNone, nil, nil
	}
	if err != nil {
		return models.TierNone, nil, err
	}
	return pass.Tier, &pass, nil
}

// MultiplierFor returns the multiplier to apply to XP accrued at the
// given instant. The multiplier starts at the pass's purchase time and
// never rescales earlier ledger entries.
func (s *SeasonPassService) MultiplierFor(tx *gorm.DB, userID string, at time.Time) (float64, *models.Season, error) {
	season, err := s.ActiveSeason(tx)
	if err != nil {
		return 1.0, nil, err
	}
	if season == nil {
		return 1.0, nil, nil
	}

	tier, pass, err := s.UserTier(tx, userID, season.ID)
	if err != nil {
		return 1.0, season, err
	}
	if pass == nil || pass.PurchasedAt.After(at) {
		return 1.0, season, nil
	}

	switch tier {
	case models.TierTotality:
		return season.TotalityMultiplier, season, nil
	case models.TierLunar:
		return season.LunarMultiplier, season, nil
	default:
		return 1.0, season, nil
	}
}

// AdvanceProgress adds finalXP to the in-season total and recomputes the
// level as the largest N whose cumulative cost fits. Creates the progress
// row lazily on first in-season gain.
func (s *SeasonPassService) AdvanceProgress(tx *gorm.DB, userID string, season *models.Season, finalXP int64) (*SeasonAdvance, error) {
	var prog models.UserSeasonProgress
	err := forUpdate(tx).Where("user_id = ? AND season_id = ?", userID, season.ID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserSeasonProgress{
			ID:             uuid.NewString(),
			UserID:         userID,
			SeasonID:       season.ID,
			ClaimedRewards: []string{},
		}
		if err := tx.Create(&prog).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	oldLevel := prog.CurrentLevel
	prog.CurrentXPInSeason += finalXP

	newLevel, err := s.levelForXP(tx, season.ID, prog.CurrentXPInSeason)
	if err != nil {
		return nil, err
	}
	prog.CurrentLevel = newLevel

	if err := tx.Model(&models.UserSeasonProgress{}).Where("id = ?", prog.ID).
		Updates(map[string]interface{}{
			"current_xp_in_season": prog.CurrentXPInSeason,
			"current_level":        prog.CurrentLevel,
		}).Error; err != nil {
		return nil, err
	}

	return &SeasonAdvance{
		SeasonID:      season.ID,
		OldLevel:      oldLevel,
		NewLevel:      newLevel,
		TotalInSeason: prog.CurrentXPInSeason,
	}, nil
}

// levelForXP: largest N such that sum(xp_required for levels 1..N) <= xp.
func (s *SeasonPassService) levelForXP(tx *gorm.DB, seasonID string, xp int64) (int, error) {
	var levels []models.SeasonLevel
	if err := tx.Where("season_id = ?", seasonID).
		Order("level_number ASC").
		Find(&levels).Error; err != nil {
		return 0, err
	}

	level := 0
	var cumulative int64
	for _, l := range levels {
		cumulative += l.XPRequiredForLevel
		if xp < cumulative {
			break
		}
		level = l.LevelNumber
	}
	return level, nil
}

// tierCovers reports whether a purchased tier unlocks a reward tier:
// TOTALITY claims both tracks, LUNAR only its own.
func tierCovers(owned models.PassTier, rewardTier models.PassTier) bool {
	switch owned {
	case models.TierTotality:
		return true
	case models.TierLunar:
		return rewardTier == models.TierLunar
	default:
		return false
	}
}

// ClaimReward validates tier, level and dedupe gates, delivers the reward
// and appends the id to the claimed set atomically.
func (s *SeasonPassService) ClaimReward(userID, rewardID string) (*SeasonRewardClaim, error) {
	var claim *SeasonRewardClaim

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var reward models.SeasonReward
		if err := tx.Where("id = ?", rewardID).First(&reward).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRewardNotFound
			}
			return err
		}

		var level models.SeasonLevel
		if err := tx.Where("id = ?", reward.SeasonLevelID).First(&level).Error; err != nil {
			return err
		}

		season, err := s.ActiveSeason(tx)
		if err != nil {
			return err
		}
		if season == nil || season.ID != level.SeasonID {
			return ErrNoActiveSeason
		}

		ownedTier, _, err := s.UserTier(tx, userID, season.ID)
		if err != nil {
			return err
		}
		if !tierCovers(ownedTier, reward.Tier) {
			return ErrTierInsufficient
		}

		var prog models.UserSeasonProgress
		if err := forUpdate(tx).Where("user_id = ? AND season_id = ?", userID, season.ID).
			First(&prog).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLevelLocked
			}
			return err
		}
		if prog.CurrentLevel < level.LevelNumber {
			return ErrLevelLocked
		}
		if prog.HasClaimed(rewardID) {
			return ErrAlreadyClaimed
		}

		claim = &SeasonRewardClaim{RewardID: rewardID, Kind: reward.Kind}

		switch reward.Kind {
		case models.RewardKindXP:
			if reward.XPAmount == nil || *reward.XPAmount <= 0 {
				return fmt.Errorf("season reward %s has no XP payload", rewardID)
			}
			res, err := s.XP.GrantTx(tx, userID, *reward.XPAmount, models.ActivitySeasonPassReward, GrantRefs{ItemID: &reward.ID})
			if err != nil {
				return err
			}
			claim.XPResult = res

		case models.RewardKindBadge:
			if reward.BadgeID == nil {
				return fmt.Errorf("season reward %s has no badge payload", rewardID)
			}
			if err := s.XP.Badges.GrantSpecific(tx, userID, *reward.BadgeID); err != nil {
				return err
			}
			claim.BadgeID = reward.BadgeID

		case models.RewardKindRaffleEntry:
			if reward.RaffleItemID == nil {
				return fmt.Errorf("season reward %s has no raffle payload", rewardID)
			}
			entry := models.RaffleEntry{
				ID:           uuid.NewString(),
				UserID:       userID,
				RaffleItemID: *reward.RaffleItemID,
				Source:       "season_pass",
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			claim.RaffleEntryID = &entry.ID

		case models.RewardKindMarketplaceItem, models.RewardKindCustom:
			// Delivery is external; claiming only records entitlement.

		default:
			return fmt.Errorf("unknown reward kind %q", reward.Kind)
		}

		// Struct-based update so the JSON serializer on the column applies.
		prog.ClaimedRewards = append(prog.ClaimedRewards, rewardID)
		return tx.Model(&prog).Select("claimed_rewards").Updates(&prog).Error
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// PurchasePass creates the pass for (user, season), or upgrades
// LUNAR -> TOTALITY in place by adding the price delta. The first write
// wins; replays are handled by the caller reading the existing row.
func (s *SeasonPassService) PurchasePass(tx *gorm.DB, userID string, season *models.Season, tier models.PassTier, paymentRef string, isUpgrade bool) (*models.UserSeasonPass, error) {
	if tier != models.TierLunar && tier != models.TierTotality {
		return nil, ErrInvalidTier
	}

	_, existing, err := s.UserTier(tx, userID, season.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if isUpgrade && existing.Tier == models.TierLunar && tier == models.TierTotality {
			existing.Tier = models.TierTotality
			existing.PurchasePrice += season.TotalityPrice - season.LunarPrice
			if err := tx.Model(&models.UserSeasonPass{}).Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"tier":           existing.Tier,
					"purchase_price": existing.PurchasePrice,
				}).Error; err != nil {
				return nil, err
			}
			log.Printf("🌒→🌑 Season pass upgraded: user=%s season=%s price=%d", userID, season.ID, existing.PurchasePrice)
			return existing, nil
		}
		// Replayed fulfillment: success, no state change.
		return existing, nil
	}

	price := season.LunarPrice
	if tier == models.TierTotality {
		price = season.TotalityPrice
	}

	pass := models.UserSeasonPass{
		ID:            uuid.NewString(),
		UserID:        userID,
		SeasonID:      season.ID,
		Tier:          tier,
		PurchasedAt:   time.Now().UTC(),
		PurchasePrice: price,
		PaymentRef:    paymentRef,
	}
	if err := tx.Create(&pass).Error; err != nil {
		return nil, err
	}
	log.Printf("🎫 Season pass purchased: user=%s season=%s tier=%s", userID, season.ID, tier)
	return &pass, nil
}

// PurchaseActive buys (or upgrades) a pass for the active season outside
// the payment fulfillment path.
func (s *SeasonPassService) PurchaseActive(userID string, tier models.PassTier, paymentRef string) (*models.UserSeasonPass, error) {
	var pass *models.UserSeasonPass
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		season, err := s.ActiveSeason(tx)
		if err != nil {
			return err
		}
		if season == nil {
			return ErrNoActiveSeason
		}
		current, _, err := s.UserTier(tx, userID, season.ID)
		if err != nil {
			return err
		}
		isUpgrade := current == models.TierLunar && tier == models.TierTotality
		pass, err = s.PurchasePass(tx, userID, season, tier, paymentRef, isUpgrade)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// State is the user-facing season pass read model: season info, progress,
// levels with per-tier rewards and claim status, and the end-of-season
// countdown when less than 72 hours remain.
func (s *SeasonPassService) State(userID string) (map[string]interface{}, error) {
	season, err := s.ActiveSeason(nil)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return map[string]interface{}{"active": false}, nil
	}

	tier, pass, err := s.UserTier(nil, userID, season.ID)
	if err != nil {
		return nil, err
	}

	var prog models.UserSeasonProgress
	if err := s.DB.Where("user_id = ? AND season_id = ?", userID, season.ID).First(&prog).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var levels []models.SeasonLevel
	if err := s.DB.Preload("Rewards").
		Where("season_id = ?", season.ID).
		Order("level_number ASC").
		Find(&levels).Error; err != nil {
		return nil, err
	}

	type rewardView struct {
		models.SeasonReward
		Claimed  bool `json:"claimed"`
		Unlocked bool `json:"unlocked"`
		Claimable bool `json:"claimable"`
	}
	type levelView struct {
		LevelNumber        int          `json:"level_number"`
		XPRequiredForLevel int64        `json:"xp_required_for_level"`
		Unlocked           bool         `json:"unlocked"`
		Rewards            []rewardView `json:"rewards"`
	}

	levelViews := make([]levelView, 0, len(levels))
	for _, l := range levels {
		unlocked := prog.CurrentLevel >= l.LevelNumber
		lv := levelView{
			LevelNumber:        l.LevelNumber,
			XPRequiredForLevel: l.XPRequiredForLevel,
			Unlocked:           unlocked,
		}
		for _, r := range l.Rewards {
			claimed := prog.HasClaimed(r.ID)
			lv.Rewards = append(lv.Rewards, rewardView{
				SeasonReward: r,
				Claimed:      claimed,
				Unlocked:     unlocked,
				Claimable:    unlocked && !claimed && tierCovers(tier, r.Tier),
			})
		}
		levelViews = append(levelViews, lv)
	}

	state := map[string]interface{}{
		"active": true,
		"season": season,
		"tier":   tier,
		"progress": map[string]interface{}{
			"current_xp_in_season": prog.CurrentXPInSeason,
			"current_level":        prog.CurrentLevel,
		},
		"levels": levelViews,
	}
	if pass != nil {
		state["purchased_at"] = pass.PurchasedAt
	}

	// Countdown surfaces only inside the final 72 hours.
	if season.EndsAt != nil {
		remaining := time.Until(*season.EndsAt)
		if remaining > 0 && remaining <= 72*time.Hour {
			state["countdown"] = map[string]interface{}{
				"hours":   int(remaining.Hours()),
				"minutes": int(remaining.Minutes()) % 60,
				"seconds": int(remaining.Seconds()) % 60,
			}
		}
	}

	return state, nil
}
