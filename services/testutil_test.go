package services

import (
	"fmt"
	"testing"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB initializes a fresh in-memory SQLite DB for testing.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.LedgerEntry{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Season{},
		&models.SeasonLevel{},
		&models.SeasonReward{},
		&models.UserSeasonPass{},
		&models.UserSeasonProgress{},
		&models.DailyRewardWeekConfiguration{},
		&models.DailyReward{},
		&models.UserDailyRewardClaim{},
		&models.DailyRewardClaimAttempt{},
		&models.WeekCompletionReward{},
		&models.UserStreak{},
		&models.ReferralLink{},
		&models.Referral{},
		&models.ReferralSecurityLog{},
		&models.ReferralRewardQueue{},
		&models.ReferralRateLimit{},
		&models.ReferralSettings{},
		&models.AffiliateLink{},
		&models.AffiliateConversion{},
		&models.LeaderboardCacheEntry{},
		&models.LeaderboardSettings{},
		&models.UserShare{},
		&models.ShareAnalyticsEvent{},
		&models.RaffleEntry{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// testEngines is the fully wired service graph backed by one test DB.
type testEngines struct {
	db           *gorm.DB
	xp           *XPEngine
	badges       *BadgeService
	seasons      *SeasonPassService
	daily        *DailyRewardService
	referrals    *ReferralService
	leaderboards *LeaderboardService
	shares       *ShareService
	payments     *PaymentService
}

func newTestEngines(t *testing.T) *testEngines {
	t.Helper()
	db := newTestDB(t)

	seasons := NewSeasonPassService(db)
	badges := NewBadgeService(db)
	xp := NewXPEngine(db, seasons, badges)
	seasons.XP = xp

	referrals := NewReferralService(db, xp)
	xp.SetFirstActivityNotifier(referrals)

	return &testEngines{
		db:           db,
		xp:           xp,
		badges:       badges,
		seasons:      seasons,
		daily:        NewDailyRewardService(db, xp),
		referrals:    referrals,
		leaderboards: NewLeaderboardService(db),
		shares:       NewShareService(db, xp),
		payments:     NewPaymentService(db, seasons),
	}
}

func seedUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	user := models.User{
		ID:            id,
		Email:         id + "@example.com",
		EmailVerified: true,
		IsActive:      true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return &user
}

// utcDate builds a UTC midnight for calendar tests.
func utcDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fixedClock returns a now() func pinned to ts, reassignable by tests.
func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
