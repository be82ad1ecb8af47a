package services

import (
	"testing"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUserWithXP(t *testing.T, e *testEngines, id string, total int64) {
	t.Helper()
	user := seedUser(t, e.db, id)
	require.NoError(t, e.db.Model(user).Updates(map[string]interface{}{
		"xp_balance":      total,
		"total_xp_earned": total,
	}).Error)
}

func TestMaterializeAllTimeRanks(t *testing.T) {
	e := newTestEngines(t)
	seedUserWithXP(t, e, "bronze", 100)
	seedUserWithXP(t, e, "gold", 900)
	seedUserWithXP(t, e, "silver", 500)
	seedUserWithXP(t, e, "zero", 0) // never ranked

	n, err := e.leaderboards.Materialize(models.TimeframeAllTime)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var entries []models.LeaderboardCacheEntry
	require.NoError(t, e.db.Where("timeframe = ?", models.TimeframeAllTime).
		Order("rank ASC").Find(&entries).Error)
	require.Len(t, entries, 3)

	assert.Equal(t, []string{"gold", "silver", "bronze"},
		[]string{entries[0].UserID, entries[1].UserID, entries[2].UserID})
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Rank)
	}
	// Totals never increase down the ranking.
	assert.GreaterOrEqual(t, entries[0].TotalXP, entries[1].TotalXP)
	assert.GreaterOrEqual(t, entries[1].TotalXP, entries[2].TotalXP)
}

func TestMaterializeRebuildReplacesStaleRows(t *testing.T) {
	e := newTestEngines(t)
	seedUserWithXP(t, e, "user1", 100)

	_, err := e.leaderboards.Materialize(models.TimeframeAllTime)
	require.NoError(t, err)

	// Ranks swap after the totals change.
	seedUserWithXP(t, e, "user2", 300)
	_, err = e.leaderboards.Materialize(models.TimeframeAllTime)
	require.NoError(t, err)

	var entries []models.LeaderboardCacheEntry
	require.NoError(t, e.db.Where("timeframe = ?", models.TimeframeAllTime).
		Order("rank ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, "user2", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
}

func TestBoundedTimeframeSumsRecentLedgerOnly(t *testing.T) {
	e := newTestEngines(t)
	seedUserWithXP(t, e, "user1", 1000)

	now := time.Now().UTC()
	for _, entry := range []models.LedgerEntry{
		{ID: uuid.NewString(), UserID: "user1", ActivityKind: models.ActivitySurveyCompleted, Amount: 80, Timestamp: now.Add(-2 * 24 * time.Hour)},
		{ID: uuid.NewString(), UserID: "user1", ActivityKind: models.ActivitySurveyCompleted, Amount: 40, Timestamp: now.Add(-10 * 24 * time.Hour)},
		{ID: uuid.NewString(), UserID: "user1", ActivityKind: models.ActivityXPSpent, Amount: -30, Timestamp: now.Add(-time.Hour)},
	} {
		require.NoError(t, e.db.Create(&entry).Error)
	}

	_, err := e.leaderboards.Materialize(models.TimeframeWeekly)
	require.NoError(t, err)

	var row models.LeaderboardCacheEntry
	require.NoError(t, e.db.Where("timeframe = ? AND user_id = ?",
		models.TimeframeWeekly, "user1").First(&row).Error)
	// Only the 80 XP earned inside the window counts: the 40 is too old
	// and spends never subtract.
	assert.Equal(t, int64(80), row.TotalXP)
}

func TestViewLazyRefreshAndCallerRank(t *testing.T) {
	e := newTestEngines(t)
	seedUserWithXP(t, e, "gold", 900)
	seedUserWithXP(t, e, "silver", 500)

	// Cold cache: View materializes on demand.
	view, err := e.leaderboards.View(models.TimeframeAllTime, "silver")
	require.NoError(t, err)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "gold", view.Entries[0].UserID)
	require.NotNil(t, view.CallerRank)
	assert.Equal(t, 2, view.CallerRank.Rank)

	// Unranked caller gets the board without an own-rank row.
	seedUser(t, e.db, "fresh")
	view, err = e.leaderboards.View(models.TimeframeAllTime, "fresh")
	require.NoError(t, err)
	assert.Nil(t, view.CallerRank)
}

func TestViewEmptyAndDisabled(t *testing.T) {
	e := newTestEngines(t)

	_, err := e.leaderboards.View(models.TimeframeAllTime, "")
	assert.ErrorIs(t, err, ErrLeaderboardEmpty)

	enabled := false
	_, err = e.leaderboards.UpdateSettings(nil, nil, &enabled)
	require.NoError(t, err)

	_, err = e.leaderboards.View(models.TimeframeAllTime, "")
	assert.ErrorIs(t, err, ErrLeaderboardDisabled)
}

func TestUpdateSettingsClampsDisplayCount(t *testing.T) {
	e := newTestEngines(t)

	count := 5000
	cfg, err := e.leaderboards.UpdateSettings(&count, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.DisplayCount)

	count = 0
	cfg, err = e.leaderboards.UpdateSettings(&count, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.DisplayCount)

	bad := models.Timeframe("HOURLY")
	_, err = e.leaderboards.UpdateSettings(nil, &bad, nil)
	assert.Error(t, err)
}
