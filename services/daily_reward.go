package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"eclipse-rewards-system/database"
	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Built-in defaults when no week configuration is active.
const (
	defaultDailyXP        = 60
	defaultRecoveryXPCost = 10
	defaultFreezeCount    = 1

	claimCooldown = 23 * time.Hour

	// Rolling per-user cap on claim attempts.
	claimAttemptLimit  = 10
	claimAttemptWindow = 60 * time.Minute
)

// DayStatus is the calendar slot state exposed to the user.
type DayStatus string

const (
	DayClaimed   DayStatus = "CLAIMED"
	DayMissed    DayStatus = "MISSED"
	DayClaimable DayStatus = "CLAIMABLE"
	DayFuture    DayStatus = "FUTURE"
)

// CalendarDay is one of the seven weekly slots. The reward stays hidden
// until the day is claimed.
type CalendarDay struct {
	Date       time.Time `json:"date"`
	DayOfWeek  int       `json:"day_of_week"`
	Status     DayStatus `json:"status"`
	CanRecover bool      `json:"can_recover"`

	// Revealed post-claim only.
	RewardKind string `json:"reward_kind,omitempty"`
	XPAwarded  int64  `json:"xp_awarded,omitempty"`
}

// ClaimOutcome reports a successful daily claim.
type ClaimOutcome struct {
	ClaimDate    time.Time `json:"claim_date"`
	RewardKind   string    `json:"reward_kind"`
	XPAwarded    int64     `json:"xp_awarded"`
	RaffleEntry  bool      `json:"raffle_entry"`
	WasRecovered bool      `json:"was_recovered"`

	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	WeekCompleted bool  `json:"week_completed"`
	WeekBonusXP   int64 `json:"week_bonus_xp,omitempty"`
}

// DailyRewardService mediates the weekly calendar: claims with cooldown,
// freeze and recovery semantics, streak maintenance and the audit trail.
// All date arithmetic is UTC.
type DailyRewardService struct {
	DB *gorm.DB
	XP *XPEngine

	// now is swappable in tests.
	now func() time.Time
}

func NewDailyRewardService(db *gorm.DB, xp *XPEngine) *DailyRewardService {
	return &DailyRewardService{DB: db, XP: xp, now: time.Now}
}

// activeWeekConfig resolves the single active configuration, or the
// built-in default (60 XP per day, 10 XP recovery, no bonus).
func (s *DailyRewardService) activeWeekConfig(tx *gorm.DB) (*models.DailyRewardWeekConfiguration, error) {
	var cfg models.DailyRewardWeekConfiguration
	err := tx.Preload("Days").Where("is_active = ?", true).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultWeekConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultWeekConfig() *models.DailyRewardWeekConfiguration {
	xp := int64(defaultDailyXP)
	cfg := &models.DailyRewardWeekConfiguration{
		WeekIdentifier:    "default",
		RecoveryXPCost:    defaultRecoveryXPCost,
		WeeklyFreezeCount: defaultFreezeCount,
	}
	for day := 1; day <= 7; day++ {
		cfg.Days = append(cfg.Days, models.DailyReward{
			DayOfWeek: day,
			Kind:      models.DailyRewardXP,
			XPAmount:  &xp,
		})
	}
	return cfg
}

func dayRewardFor(cfg *models.DailyRewardWeekConfiguration, day int) *models.DailyReward {
	for i := range cfg.Days {
		if cfg.Days[i].DayOfWeek == day {
			return &cfg.Days[i]
		}
	}
	return nil
}

// ensureStreak loads (locked) or creates the user's streak row. New rows
// start with the full weekly freeze pool.
func (s *DailyRewardService) ensureStreak(tx *gorm.DB, userID string, today time.Time, cfg *models.DailyRewardWeekConfiguration) (*models.UserStreak, error) {
	var streak models.UserStreak
	err := forUpdate(tx).Where("user_id = ?", userID).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		streak = models.UserStreak{
			ID:                uuid.NewString(),
			UserID:            userID,
			WeekStartDate:     isoMonday(today),
			WeeklyFreezesLeft: cfg.WeeklyFreezeCount,
		}
		if err := tx.Create(&streak).Error; err != nil {
			return nil, err
		}
		return &streak, nil
	}
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

// refreshWeeklyFreezes resets the freeze pool when the ISO week rolled over.
func refreshWeeklyFreezes(streak *models.UserStreak, cfg *models.DailyRewardWeekConfiguration, today time.Time) {
	monday := isoMonday(today)
	if streak.WeekStartDate.Before(monday) {
		streak.WeeklyFreezesLeft = cfg.WeeklyFreezeCount
		streak.WeekStartDate = monday
	}
}

// recoverable: missed date D qualifies iff the streak is live and D lies
// in [lastClaim-(streak-1), lastClaim).
func recoverable(streak *models.UserStreak, missed time.Time) bool {
	if streak.CurrentStreak == 0 || streak.LastClaimDate == nil {
		return false
	}
	last := dateUTC(*streak.LastClaimDate)
	start := last.AddDate(0, 0, -(streak.CurrentStreak - 1))
	d := dateUTC(missed)
	return !d.Before(start) && d.Before(last)
}

// Calendar renders the current week for the user: streak summary plus the
// seven slots.
func (s *DailyRewardService) Calendar(userID string) (map[string]interface{}, error) {
	today := dateUTC(s.now())
	monday := isoMonday(today)

	cfg, err := s.activeWeekConfig(s.DB)
	if err != nil {
		return nil, err
	}

	var streak models.UserStreak
	if err := s.DB.Where("user_id = ?", userID).First(&streak).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	refreshWeeklyFreezes(&streak, cfg, today)

	var claims []models.UserDailyRewardClaim
	if err := s.DB.Where("user_id = ? AND claim_date >= ? AND claim_date < ?",
		userID, monday, monday.AddDate(0, 0, 7)).
		Find(&claims).Error; err != nil {
		return nil, err
	}
	claimed := make(map[string]*models.UserDailyRewardClaim, len(claims))
	for i := range claims {
		claimed[dateUTC(claims[i].ClaimDate).Format("2006-01-02")] = &claims[i]
	}

	days := make([]CalendarDay, 0, 7)
	for i := 0; i < 7; i++ {
		date := monday.AddDate(0, 0, i)
		day := CalendarDay{Date: date, DayOfWeek: i + 1}

		if c, ok := claimed[date.Format("2006-01-02")]; ok {
			day.Status = DayClaimed
			day.XPAwarded = c.XPAwarded
			if c.RaffleEntryCreated {
				day.RewardKind = string(models.DailyRewardRaffleEntry)
			} else {
				day.RewardKind = string(models.DailyRewardXP)
			}
		} else if date.Before(today) {
			day.Status = DayMissed
			day.CanRecover = recoverable(&streak, date)
		} else if date.Equal(today) {
			day.Status = DayClaimable
		} else {
			day.Status = DayFuture
		}
		days = append(days, day)
	}

	return map[string]interface{}{
		"streak": map[string]interface{}{
			"current_streak":      streak.CurrentStreak,
			"longest_streak":      streak.LongestStreak,
			"last_claim_date":     streak.LastClaimDate,
			"weekly_freezes_left": streak.WeeklyFreezesLeft,
			"total_claims":        streak.TotalClaims,
			"total_recoveries":    streak.TotalRecoveries,
		},
		"week": map[string]interface{}{
			"week_start":          monday,
			"week_identifier":     cfg.WeekIdentifier,
			"recovery_xp_cost":    cfg.RecoveryXPCost,
			"completion_bonus_xp": cfg.CompletionBonusXP,
		},
		"days": days,
	}, nil
}

// Claim performs the daily claim for claimDate (default: today UTC).
// Exactly one audit attempt row is written per attempt, success or not;
// the success audit write is best-effort and never rolls the claim back.
func (s *DailyRewardService) Claim(userID string, claimDate *time.Time, ip, userAgent string) (*ClaimOutcome, error) {
	now := s.now().UTC()
	today := dateUTC(now)

	target := today
	if claimDate != nil {
		target = dateUTC(*claimDate)
	}

	allowed, err := database.CheckRateLimit(database.ClaimAttemptKey(userID), claimAttemptLimit, claimAttemptWindow)
	if err != nil {
		log.Printf("⚠️ claim rate-limit check failed for %s: %v", userID, err)
	} else if !allowed {
		s.writeAttempt(userID, target, now, ip, userAgent, false, ErrRateLimited.Error(), nil)
		return nil, ErrRateLimited
	}

	if target.After(today) {
		s.writeAttempt(userID, target, now, ip, userAgent, false, ErrFutureDate.Error(), nil)
		return nil, ErrFutureDate
	}

	var outcome *ClaimOutcome
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.activeWeekConfig(tx)
		if err != nil {
			return err
		}

		streak, err := s.ensureStreak(tx, userID, today, cfg)
		if err != nil {
			return err
		}

		// 23-hour cooldown between regular claims, measured against the
		// most recent successful non-recovery attempt. Recoveries are
		// paid for in XP and exempt on both sides.
		if !target.Before(today) {
			var lastSuccess models.DailyRewardClaimAttempt
			err = tx.Where("user_id = ? AND was_successful = ? AND was_recovered = ?", userID, true, false).
				Order("timestamp DESC").
				First(&lastSuccess).Error
			if err == nil {
				elapsed := now.Sub(lastSuccess.Timestamp)
				if elapsed < claimCooldown && !dateUTC(lastSuccess.ClaimDate).Equal(target) {
					remaining := claimCooldown - elapsed
					return &CooldownError{RemainingHours: remaining.Hours()}
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var existing int64
		if err := tx.Model(&models.UserDailyRewardClaim{}).
			Where("user_id = ? AND claim_date = ?", userID, target).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyClaimed
		}

		refreshWeeklyFreezes(streak, cfg, today)

		isRecovery := target.Before(today)
		var recoveryCost *int64
		if isRecovery {
			if !recoverable(streak, target) {
				return ErrOutsideStreakWindow
			}
			var user models.User
			if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
				return err
			}
			if user.XPBalance < cfg.RecoveryXPCost {
				return &RecoveryCostError{Cost: cfg.RecoveryXPCost, Balance: user.XPBalance}
			}
			if err := s.XP.SpendTx(tx, userID, cfg.RecoveryXPCost, "daily reward recovery"); err != nil {
				return err
			}
			cost := cfg.RecoveryXPCost
			recoveryCost = &cost
		}

		// Deliver the day's reward.
		weekday := int(target.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		reward := dayRewardFor(cfg, weekday)
		if reward == nil {
			return fmt.Errorf("no reward configured for day %d", weekday)
		}

		claim := models.UserDailyRewardClaim{
			ID:             uuid.NewString(),
			UserID:         userID,
			ClaimDate:      target,
			WasRecovered:   isRecovery,
			RecoveryXPCost: recoveryCost,
		}
		outcome = &ClaimOutcome{
			ClaimDate:    target,
			RewardKind:   string(reward.Kind),
			WasRecovered: isRecovery,
		}

		switch reward.Kind {
		case models.DailyRewardXP:
			if reward.XPAmount == nil {
				return fmt.Errorf("day %d reward has no XP amount", weekday)
			}
			res, err := s.XP.GrantTx(tx, userID, *reward.XPAmount, models.ActivityDailyRewardClaimed, GrantRefs{})
			if err != nil {
				return err
			}
			claim.XPAwarded = res.FinalXP
			outcome.XPAwarded = res.FinalXP

		case models.DailyRewardRaffleEntry:
			if reward.RaffleItemID == nil {
				return fmt.Errorf("day %d reward has no raffle item", weekday)
			}
			entry := models.RaffleEntry{
				ID:           uuid.NewString(),
				UserID:       userID,
				RaffleItemID: *reward.RaffleItemID,
				Source:       "daily_reward",
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			claim.RaffleEntryCreated = true
			outcome.RaffleEntry = true

		default:
			return fmt.Errorf("unknown daily reward kind %q", reward.Kind)
		}

		if err := tx.Create(&claim).Error; err != nil {
			return err
		}

		// Streak maintenance. Recoveries count claims but never move the
		// streak; missed days consume freezes before breaking it, and
		// more than two missed days always reset.
		if isRecovery {
			streak.TotalRecoveries++
		} else {
			if streak.LastClaimDate == nil {
				streak.CurrentStreak = 1
			} else {
				gap := daysBetween(*streak.LastClaimDate, target) - 1
				switch {
				case gap <= 0:
					streak.CurrentStreak++
				case gap <= 2 && streak.WeeklyFreezesLeft >= gap:
					streak.WeeklyFreezesLeft -= gap
					streak.CurrentStreak++
				default:
					streak.CurrentStreak = 1
				}
			}
			lcd := target
			streak.LastClaimDate = &lcd
		}
		if streak.CurrentStreak > streak.LongestStreak {
			streak.LongestStreak = streak.CurrentStreak
		}
		streak.TotalClaims++
		if err := tx.Save(streak).Error; err != nil {
			return err
		}
		outcome.CurrentStreak = streak.CurrentStreak
		outcome.LongestStreak = streak.LongestStreak

		// Week completion bonus, once per (user, ISO week).
		monday := isoMonday(target)
		var weekClaims int64
		if err := tx.Model(&models.UserDailyRewardClaim{}).
			Where("user_id = ? AND claim_date >= ? AND claim_date < ?",
				userID, monday, monday.AddDate(0, 0, 7)).
			Count(&weekClaims).Error; err != nil {
			return err
		}
		if weekClaims == 7 {
			var done int64
			if err := tx.Model(&models.WeekCompletionReward{}).
				Where("user_id = ? AND week_start_date = ?", userID, monday).
				Count(&done).Error; err != nil {
				return err
			}
			if done == 0 {
				bonus := models.WeekCompletionReward{
					ID:            uuid.NewString(),
					UserID:        userID,
					WeekStartDate: monday,
					XPAwarded:     cfg.CompletionBonusXP,
				}
				if cfg.CompletionBonusXP > 0 {
					if _, err := s.XP.GrantTx(tx, userID, cfg.CompletionBonusXP, models.ActivityWeeklyCompletionBonus, GrantRefs{}); err != nil {
						return err
					}
				}
				if err := tx.Create(&bonus).Error; err != nil {
					return err
				}
				outcome.WeekCompleted = true
				outcome.WeekBonusXP = cfg.CompletionBonusXP
			}
		}

		return nil
	})

	if err != nil {
		s.writeAttempt(userID, target, now, ip, userAgent, false, err.Error(), nil)
		return nil, err
	}

	s.writeAttempt(userID, target, now, ip, userAgent, true, "", outcome)
	return outcome, nil
}

// writeAttempt appends the immutable audit row. Best-effort: an audit
// failure is logged, never propagated.
func (s *DailyRewardService) writeAttempt(userID string, claimDate, at time.Time, ip, userAgent string, success bool, reason string, outcome *ClaimOutcome) {
	attempt := models.DailyRewardClaimAttempt{
		ID:            uuid.NewString(),
		UserID:        userID,
		ClaimDate:     claimDate,
		WasSuccessful: success,
		FailureReason: reason,
		IPAddress:     ip,
		UserAgent:     userAgent,
		Timestamp:     at,
	}
	if outcome != nil {
		attempt.RewardKind = outcome.RewardKind
		attempt.RewardAmount = outcome.XPAwarded
		attempt.WasRecovered = outcome.WasRecovered
	}
	if err := s.DB.Create(&attempt).Error; err != nil {
		log.Printf("❌ failed to write claim attempt audit row for %s: %v", userID, err)
	}
}
