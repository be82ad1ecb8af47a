package services

import (
	"testing"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantWritesLedgerAndBalance(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")

	result, err := e.xp.Grant("user1", 100, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.FinalXP)
	assert.Equal(t, int64(100), result.NewBalance)
	assert.Equal(t, int64(100), result.TotalEarned)

	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", "user1").Error)
	assert.Equal(t, int64(100), user.XPBalance)
	assert.Equal(t, int64(100), user.TotalXPEarned)

	var entries []models.LedgerEntry
	require.NoError(t, e.db.Where("user_id = ?", "user1").Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].Amount)
	assert.Equal(t, models.ActivitySurveyCompleted, entries[0].ActivityKind)
}

func TestGrantRejectsNonPositiveAmount(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")

	_, err := e.xp.Grant("user1", 0, models.ActivitySurveyCompleted, GrantRefs{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = e.xp.Grant("user1", -50, models.ActivitySurveyCompleted, GrantRefs{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestGrantUnknownUser(t *testing.T) {
	e := newTestEngines(t)

	_, err := e.xp.Grant("missing", 100, models.ActivitySurveyCompleted, GrantRefs{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGrantInactiveUser(t *testing.T) {
	e := newTestEngines(t)
	user := seedUser(t, e.db, "user1")
	require.NoError(t, e.db.Model(user).Update("is_active", false).Error)

	_, err := e.xp.Grant("user1", 100, models.ActivitySurveyCompleted, GrantRefs{})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestSpendBoundaries(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	_, err := e.xp.Grant("user1", 100, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)

	assert.ErrorIs(t, e.xp.Spend("user1", 0, "test"), ErrInvalidAmount)
	assert.ErrorIs(t, e.xp.Spend("user1", 101, "test"), ErrInsufficientBalance)

	// Spending the exact balance is allowed and lands on zero.
	require.NoError(t, e.xp.Spend("user1", 100, "test"))

	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", "user1").Error)
	assert.Equal(t, int64(0), user.XPBalance)
	// Lifetime total never decreases.
	assert.Equal(t, int64(100), user.TotalXPEarned)

	var spendEntry models.LedgerEntry
	require.NoError(t, e.db.Where("user_id = ? AND activity_kind = ?", "user1", models.ActivityXPSpent).First(&spendEntry).Error)
	assert.Equal(t, int64(-100), spendEntry.Amount)
	// The reason lands in the note column, not an entity reference.
	assert.Equal(t, "test", spendEntry.Description)
	assert.Nil(t, spendEntry.RelatedItemID)
}

func TestBadgeAwardedOnceAtThreshold(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	require.NoError(t, e.db.Create(&models.Badge{
		ID: uuid.NewString(), Name: "First Steps", XPThreshold: 50,
	}).Error)

	result, err := e.xp.Grant("user1", 60, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	require.Len(t, result.NewBadges, 1)
	assert.Equal(t, "First Steps", result.NewBadges[0].Name)

	// Crossing the threshold again must not re-award.
	result, err = e.xp.Grant("user1", 60, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Empty(t, result.NewBadges)

	var count int64
	require.NoError(t, e.db.Model(&models.UserBadge{}).Where("user_id = ?", "user1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGrantAppliesSeasonMultiplier(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")

	season := models.Season{
		ID: uuid.NewString(), Name: "Eclipse One", Slug: "eclipse-one",
		StartsAt: time.Now().UTC().Add(-24 * time.Hour), IsActive: true,
		LunarPrice: 499, TotalityPrice: 999,
		LunarMultiplier: 1.25, TotalityMultiplier: 2.0,
	}
	require.NoError(t, e.db.Create(&season).Error)
	require.NoError(t, e.db.Create(&models.UserSeasonPass{
		ID: uuid.NewString(), UserID: "user1", SeasonID: season.ID,
		Tier: models.TierTotality, PurchasedAt: time.Now().UTC().Add(-time.Hour),
		PurchasePrice: 999,
	}).Error)

	result, err := e.xp.Grant("user1", 50, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.Multiplier)
	assert.Equal(t, int64(100), result.FinalXP)

	// The ledger row carries the multiplied amount, not the base.
	var entry models.LedgerEntry
	require.NoError(t, e.db.Where("user_id = ?", "user1").First(&entry).Error)
	assert.Equal(t, int64(100), entry.Amount)
}

func TestMultiplierNotRetroactive(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")

	season := models.Season{
		ID: uuid.NewString(), Name: "Eclipse Two", Slug: "eclipse-two",
		StartsAt: time.Now().UTC().Add(-24 * time.Hour), IsActive: true,
		LunarPrice: 499, TotalityPrice: 999,
		LunarMultiplier: 1.25, TotalityMultiplier: 2.0,
	}
	require.NoError(t, e.db.Create(&season).Error)

	// Pass purchased in the future: grants before the purchase moment
	// stay at 1.0.
	require.NoError(t, e.db.Create(&models.UserSeasonPass{
		ID: uuid.NewString(), UserID: "user1", SeasonID: season.ID,
		Tier: models.TierTotality, PurchasedAt: time.Now().UTC().Add(time.Hour),
		PurchasePrice: 999,
	}).Error)

	result, err := e.xp.Grant("user1", 50, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Multiplier)
	assert.Equal(t, int64(50), result.FinalXP)
}

func TestMultiplierFloorsFractions(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")

	season := models.Season{
		ID: uuid.NewString(), Name: "Eclipse Three", Slug: "eclipse-three",
		StartsAt: time.Now().UTC().Add(-24 * time.Hour), IsActive: true,
		LunarPrice: 499, TotalityPrice: 999,
		LunarMultiplier: 1.25, TotalityMultiplier: 2.0,
	}
	require.NoError(t, e.db.Create(&season).Error)
	require.NoError(t, e.db.Create(&models.UserSeasonPass{
		ID: uuid.NewString(), UserID: "user1", SeasonID: season.ID,
		Tier: models.TierLunar, PurchasedAt: time.Now().UTC().Add(-time.Hour),
		PurchasePrice: 499,
	}).Error)

	// 25 * 1.25 = 31.25 -> 31
	result, err := e.xp.Grant("user1", 25, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Equal(t, int64(31), result.FinalXP)
}
