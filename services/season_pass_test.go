package services

import (
	"testing"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSeason(t *testing.T, e *testEngines) *models.Season {
	t.Helper()
	season := models.Season{
		ID: uuid.NewString(), Name: "First Eclipse", Slug: "first-eclipse",
		StartsAt: time.Now().UTC().Add(-24 * time.Hour), IsActive: true,
		LunarPrice: 499, TotalityPrice: 999,
		LunarMultiplier: 1.25, TotalityMultiplier: 2.0,
	}
	require.NoError(t, e.db.Create(&season).Error)
	return &season
}

func seedLevels(t *testing.T, e *testEngines, seasonID string, costs ...int64) []models.SeasonLevel {
	t.Helper()
	levels := make([]models.SeasonLevel, len(costs))
	for i, cost := range costs {
		levels[i] = models.SeasonLevel{
			ID: uuid.NewString(), SeasonID: seasonID,
			LevelNumber: i + 1, XPRequiredForLevel: cost,
		}
		require.NoError(t, e.db.Create(&levels[i]).Error)
	}
	return levels
}

func buyPass(t *testing.T, e *testEngines, userID, seasonID string, tier models.PassTier) *models.UserSeasonPass {
	t.Helper()
	pass := models.UserSeasonPass{
		ID: uuid.NewString(), UserID: userID, SeasonID: seasonID,
		Tier: tier, PurchasedAt: time.Now().UTC().Add(-time.Hour), PurchasePrice: 499,
	}
	require.NoError(t, e.db.Create(&pass).Error)
	return &pass
}

func TestLevelProgressionFromCumulativeCosts(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	season := seedSeason(t, e)
	seedLevels(t, e, season.ID, 100, 200, 300) // cumulative: 100, 300, 600

	res, err := e.xp.Grant("user1", 150, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	require.NotNil(t, res.SeasonResult)
	assert.Equal(t, 0, res.SeasonResult.OldLevel)
	assert.Equal(t, 1, res.SeasonResult.NewLevel)
	assert.Equal(t, int64(150), res.SeasonResult.TotalInSeason)

	res, err = e.xp.Grant("user1", 150, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SeasonResult.NewLevel)

	// 300 more puts the total at 600, exactly level 3.
	res, err = e.xp.Grant("user1", 300, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SeasonResult.NewLevel)
}

func TestClaimRewardGates(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	season := seedSeason(t, e)
	levels := seedLevels(t, e, season.ID, 100, 200)

	xp := int64(250)
	lunarReward := models.SeasonReward{
		ID: uuid.NewString(), SeasonLevelID: levels[0].ID,
		Tier: models.TierLunar, Kind: models.RewardKindXP, XPAmount: &xp,
	}
	totalityReward := models.SeasonReward{
		ID: uuid.NewString(), SeasonLevelID: levels[0].ID,
		Tier: models.TierTotality, Kind: models.RewardKindXP, XPAmount: &xp,
	}
	lockedReward := models.SeasonReward{
		ID: uuid.NewString(), SeasonLevelID: levels[1].ID,
		Tier: models.TierLunar, Kind: models.RewardKindXP, XPAmount: &xp,
	}
	require.NoError(t, e.db.Create(&lunarReward).Error)
	require.NoError(t, e.db.Create(&totalityReward).Error)
	require.NoError(t, e.db.Create(&lockedReward).Error)

	_, err := e.seasons.ClaimReward("user1", "missing")
	assert.ErrorIs(t, err, ErrRewardNotFound)

	// No pass at all: tier gate fires first.
	_, err = e.seasons.ClaimReward("user1", lunarReward.ID)
	assert.ErrorIs(t, err, ErrTierInsufficient)

	buyPass(t, e, "user1", season.ID, models.TierLunar)

	// LUNAR does not unlock the TOTALITY track.
	_, err = e.seasons.ClaimReward("user1", totalityReward.ID)
	assert.ErrorIs(t, err, ErrTierInsufficient)

	// No progress yet: level gate.
	_, err = e.seasons.ClaimReward("user1", lunarReward.ID)
	assert.ErrorIs(t, err, ErrLevelLocked)

	_, err = e.xp.Grant("user1", 120, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)

	// 150 in-season (120 * 1.25) unlocks level 1 but not level 2.
	claim, err := e.seasons.ClaimReward("user1", lunarReward.ID)
	require.NoError(t, err)
	require.NotNil(t, claim.XPResult)

	_, err = e.seasons.ClaimReward("user1", lockedReward.ID)
	assert.ErrorIs(t, err, ErrLevelLocked)

	// Claiming the same reward twice is rejected.
	_, err = e.seasons.ClaimReward("user1", lunarReward.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestGrantKeepsWorkingAfterClaim(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	season := seedSeason(t, e)
	levels := seedLevels(t, e, season.ID, 100, 200)
	buyPass(t, e, "user1", season.ID, models.TierLunar)

	xp := int64(40)
	reward := models.SeasonReward{
		ID: uuid.NewString(), SeasonLevelID: levels[0].ID,
		Tier: models.TierLunar, Kind: models.RewardKindXP, XPAmount: &xp,
	}
	require.NoError(t, e.db.Create(&reward).Error)

	_, err := e.xp.Grant("user1", 120, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)

	_, err = e.seasons.ClaimReward("user1", reward.ID)
	require.NoError(t, err)

	// The claimed set must round-trip as JSON so later reads decode it.
	var prog models.UserSeasonProgress
	require.NoError(t, e.db.Where("user_id = ? AND season_id = ?", "user1", season.ID).
		First(&prog).Error)
	assert.Equal(t, []string{reward.ID}, prog.ClaimedRewards)

	// Grants while the season is active keep advancing progress.
	res, err := e.xp.Grant("user1", 200, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)
	require.NotNil(t, res.SeasonResult)

	_, err = e.seasons.ClaimReward("user1", reward.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaimRewardDeliversRaffleEntry(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	season := seedSeason(t, e)
	levels := seedLevels(t, e, season.ID, 50)

	raffleItem := uuid.NewString()
	reward := models.SeasonReward{
		ID: uuid.NewString(), SeasonLevelID: levels[0].ID,
		Tier: models.TierLunar, Kind: models.RewardKindRaffleEntry, RaffleItemID: &raffleItem,
	}
	require.NoError(t, e.db.Create(&reward).Error)
	buyPass(t, e, "user1", season.ID, models.TierLunar)

	_, err := e.xp.Grant("user1", 100, models.ActivitySurveyCompleted, GrantRefs{})
	require.NoError(t, err)

	claim, err := e.seasons.ClaimReward("user1", reward.ID)
	require.NoError(t, err)
	require.NotNil(t, claim.RaffleEntryID)

	var entry models.RaffleEntry
	require.NoError(t, e.db.First(&entry, "id = ?", *claim.RaffleEntryID).Error)
	assert.Equal(t, "user1", entry.UserID)
	assert.Equal(t, raffleItem, entry.RaffleItemID)
	assert.Equal(t, "season_pass", entry.Source)
}

func TestPurchaseUpgradeAddsPriceDelta(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	season := seedSeason(t, e)

	pass, err := e.seasons.PurchaseActive("user1", models.TierLunar, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.TierLunar, pass.Tier)
	assert.Equal(t, season.LunarPrice, pass.PurchasePrice)

	upgraded, err := e.seasons.PurchaseActive("user1", models.TierTotality, "pay_2")
	require.NoError(t, err)
	assert.Equal(t, models.TierTotality, upgraded.Tier)
	assert.Equal(t, season.TotalityPrice, upgraded.PurchasePrice)

	var count int64
	require.NoError(t, e.db.Model(&models.UserSeasonPass{}).
		Where("user_id = ?", "user1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPurchaseReplayReturnsExistingPass(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedSeason(t, e)

	first, err := e.seasons.PurchaseActive("user1", models.TierLunar, "pay_1")
	require.NoError(t, err)

	second, err := e.seasons.PurchaseActive("user1", models.TierLunar, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, e.db.Model(&models.UserSeasonPass{}).
		Where("user_id = ?", "user1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPurchaseInvalidTier(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	seedSeason(t, e)

	_, err := e.seasons.PurchaseActive("user1", models.TierNone, "pay_1")
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestFulfillIdempotent(t *testing.T) {
	e := newTestEngines(t)
	seedUser(t, e.db, "user1")
	season := seedSeason(t, e)

	meta := FulfillmentMetadata{
		UserID: "user1", SeasonID: season.ID, Tier: models.TierLunar,
	}
	first, err := e.payments.Fulfill("pay_abc", meta)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Replayed webhook delivery: same result, no second pass.
	second, err := e.payments.Fulfill("pay_abc", meta)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, e.db.Model(&models.UserSeasonPass{}).
		Where("user_id = ?", "user1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFulfillAcknowledgesBusinessPackages(t *testing.T) {
	e := newTestEngines(t)

	// Not a season pass purchase: acknowledged without fulfillment.
	pass, err := e.payments.Fulfill("pay_biz_1", FulfillmentMetadata{
		BusinessID: "biz1", PackageType: "RESPONSES", PackageID: "pkg_small",
	})
	require.NoError(t, err)
	assert.Nil(t, pass)

	var count int64
	require.NoError(t, e.db.Model(&models.UserSeasonPass{}).Count(&count).Error)
	assert.Zero(t, count)
}
