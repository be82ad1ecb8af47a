package services

import (
	"testing"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-01-05 is a Monday.
var testMonday = utcDate(2026, time.January, 5)

func seedWeekConfig(t *testing.T, e *testEngines, recoveryCost, bonusXP int64, freezes int) *models.DailyRewardWeekConfiguration {
	t.Helper()
	cfg := models.DailyRewardWeekConfiguration{
		ID:                uuid.NewString(),
		WeekIdentifier:    "test-week",
		IsActive:          true,
		RecoveryXPCost:    recoveryCost,
		WeeklyFreezeCount: freezes,
		CompletionBonusXP: bonusXP,
	}
	require.NoError(t, e.db.Create(&cfg).Error)
	xp := int64(60)
	for day := 1; day <= 7; day++ {
		require.NoError(t, e.db.Create(&models.DailyReward{
			ID: uuid.NewString(), WeekConfigID: cfg.ID,
			DayOfWeek: day, Kind: models.DailyRewardXP, XPAmount: &xp,
		}).Error)
	}
	return &cfg
}

func TestDailyClaimGrantsXPAndStartsStreak(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)
	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))

	outcome, err := e.daily.Claim("user1", nil, "1.2.3.4", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, int64(60), outcome.XPAwarded)
	assert.Equal(t, 1, outcome.CurrentStreak)
	assert.False(t, outcome.WasRecovered)

	var entry models.LedgerEntry
	require.NoError(t, e.db.Where("user_id = ? AND activity_kind = ?",
		"user1", models.ActivityDailyRewardClaimed).First(&entry).Error)
	assert.Equal(t, int64(60), entry.Amount)

	var attempt models.DailyRewardClaimAttempt
	require.NoError(t, e.db.Where("user_id = ?", "user1").First(&attempt).Error)
	assert.True(t, attempt.WasSuccessful)
	assert.Equal(t, "1.2.3.4", attempt.IPAddress)
}

func TestDailyClaimDuplicateRejected(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)
	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))

	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	_, err = e.daily.Claim("user1", nil, "", "")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// Both attempts, success and failure, are in the audit trail.
	var attempts int64
	require.NoError(t, e.db.Model(&models.DailyRewardClaimAttempt{}).
		Where("user_id = ?", "user1").Count(&attempts).Error)
	assert.Equal(t, int64(2), attempts)
}

func TestDailyClaimFutureDateRejected(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)
	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))

	tomorrow := testMonday.AddDate(0, 0, 1)
	_, err := e.daily.Claim("user1", &tomorrow, "", "")
	assert.ErrorIs(t, err, ErrFutureDate)
}

func TestDailyClaimCooldown(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)

	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))
	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	// 22 hours later: still inside the 23h cooldown.
	e.daily.now = fixedClock(testMonday.Add(32 * time.Hour))
	_, err = e.daily.Claim("user1", nil, "", "")
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.InDelta(t, 1.0, cooldown.RemainingHours, 0.01)

	// 23.5 hours later: allowed, streak continues.
	e.daily.now = fixedClock(testMonday.Add(33*time.Hour + 30*time.Minute))
	outcome, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.CurrentStreak)
}

func TestStreakFreezeBridgesOneMissedDay(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)

	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))
	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	// Tuesday missed; Wednesday claim consumes the freeze.
	e.daily.now = fixedClock(testMonday.Add(58 * time.Hour))
	outcome, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.CurrentStreak)

	var streak models.UserStreak
	require.NoError(t, e.db.Where("user_id = ?", "user1").First(&streak).Error)
	assert.Equal(t, 0, streak.WeeklyFreezesLeft)
}

func TestStreakResetsAfterLongGap(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)

	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))
	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	// Three missed days: more than any freeze pool can bridge.
	e.daily.now = fixedClock(testMonday.Add(106 * time.Hour)) // Friday
	outcome, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.CurrentStreak)

	var streak models.UserStreak
	require.NoError(t, e.db.Where("user_id = ?", "user1").First(&streak).Error)
	assert.Equal(t, 1, streak.LongestStreak)
}

func TestRecoveryOfFrozenDay(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)

	// Monday claim, Tuesday missed, Wednesday claim over the freeze.
	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))
	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	e.daily.now = fixedClock(testMonday.Add(58 * time.Hour))
	_, err = e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	// Recover Tuesday: costs 10 XP, pays the day's 60, streak unchanged.
	tuesday := testMonday.AddDate(0, 0, 1)
	outcome, err := e.daily.Claim("user1", &tuesday, "", "")
	require.NoError(t, err)
	assert.True(t, outcome.WasRecovered)
	assert.Equal(t, int64(60), outcome.XPAwarded)
	assert.Equal(t, 2, outcome.CurrentStreak)

	var streak models.UserStreak
	require.NoError(t, e.db.Where("user_id = ?", "user1").First(&streak).Error)
	assert.Equal(t, int64(1), streak.TotalRecoveries)
	assert.Equal(t, int64(3), streak.TotalClaims)

	// 60 + 60 - 10 + 60
	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", "user1").Error)
	assert.Equal(t, int64(170), user.XPBalance)
}

func TestRecoveryOutsideStreakWindow(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)

	// No streak at all: nothing is recoverable.
	e.daily.now = fixedClock(testMonday.Add(58 * time.Hour))
	tuesday := testMonday.AddDate(0, 0, 1)
	_, err := e.daily.Claim("user1", &tuesday, "", "")
	assert.ErrorIs(t, err, ErrOutsideStreakWindow)
}

func TestRecoveryRequiresBalance(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 1000, 0, 1)

	e.daily.now = fixedClock(testMonday.Add(10 * time.Hour))
	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	e.daily.now = fixedClock(testMonday.Add(58 * time.Hour))
	_, err = e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	tuesday := testMonday.AddDate(0, 0, 1)
	_, err = e.daily.Claim("user1", &tuesday, "", "")
	var costErr *RecoveryCostError
	require.ErrorAs(t, err, &costErr)
	assert.Equal(t, int64(1000), costErr.Cost)
	assert.Equal(t, int64(120), costErr.Balance)
}

func TestWeekCompletionBonusPaidOnce(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 100, 1)

	var last *ClaimOutcome
	for day := 0; day < 7; day++ {
		e.daily.now = fixedClock(testMonday.Add(time.Duration(day)*24*time.Hour + 10*time.Hour))
		outcome, err := e.daily.Claim("user1", nil, "", "")
		require.NoError(t, err)
		last = outcome
		if day < 6 {
			assert.False(t, outcome.WeekCompleted)
		}
	}

	require.NotNil(t, last)
	assert.True(t, last.WeekCompleted)
	assert.Equal(t, int64(100), last.WeekBonusXP)
	assert.Equal(t, 7, last.CurrentStreak)

	var bonuses int64
	require.NoError(t, e.db.Model(&models.WeekCompletionReward{}).
		Where("user_id = ?", "user1").Count(&bonuses).Error)
	assert.Equal(t, int64(1), bonuses)

	// 7 * 60 + 100
	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", "user1").Error)
	assert.Equal(t, int64(520), user.XPBalance)
}

func TestCalendarHidesUnclaimedRewards(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedWeekConfig(t, e, 10, 0, 1)
	e.daily.now = fixedClock(testMonday.Add(34 * time.Hour)) // Tuesday

	_, err := e.daily.Claim("user1", nil, "", "")
	require.NoError(t, err)

	calendar, err := e.daily.Calendar("user1")
	require.NoError(t, err)
	days := calendar["days"].([]CalendarDay)
	require.Len(t, days, 7)

	// Monday missed, Tuesday claimed with its reward revealed, the rest
	// of the week hidden.
	assert.Equal(t, DayMissed, days[0].Status)
	assert.Equal(t, DayClaimed, days[1].Status)
	assert.Equal(t, int64(60), days[1].XPAwarded)
	for _, d := range days[2:] {
		assert.Equal(t, DayFuture, d.Status)
		assert.Zero(t, d.XPAwarded)
	}
}
