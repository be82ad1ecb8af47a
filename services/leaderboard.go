package services

import (
	"errors"
	"log"
	"time"

	"eclipse-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	leaderboardDepth       = 500
	leaderboardMaxStale    = 2 * time.Hour
	leaderboardMaxDisplay  = 100
)

// rankedRow is the aggregation shape shared by both materialization paths.
type rankedRow struct {
	UserID  string
	TotalXP int64
}

// LeaderboardEntry is the read-model row handed to clients.
type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"user_id"`
	TotalXP int64  `json:"total_xp"`
}

// LeaderboardView is the full read model for one timeframe.
type LeaderboardView struct {
	Timeframe   models.Timeframe   `json:"timeframe"`
	GeneratedAt time.Time          `json:"generated_at"`
	Entries     []LeaderboardEntry `json:"entries"`
	CallerRank  *LeaderboardEntry  `json:"caller_rank,omitempty"`
}

// LeaderboardService materializes rankings into a cache table and serves
// reads from it. Bounded timeframes are computed from the ledger, the
// all-time board straight from user lifetime totals.
type LeaderboardService struct {
	DB *gorm.DB

	now func() time.Time
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db, now: time.Now}
}

func timeframeCutoff(tf models.Timeframe, now time.Time) (time.Time, bool) {
	switch tf {
	case models.TimeframeMonthly:
		return now.Add(-30 * 24 * time.Hour), true
	case models.TimeframeWeekly:
		return now.Add(-7 * 24 * time.Hour), true
	case models.TimeframeDaily:
		return now.Add(-24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

// Materialize rebuilds one timeframe: delete everything, insert the top
// rows ranked 1..N. Ties keep insertion order so ranks stay unique.
func (s *LeaderboardService) Materialize(tf models.Timeframe) (int, error) {
	now := s.now().UTC()

	var rows []rankedRow
	if cutoff, bounded := timeframeCutoff(tf, now); bounded {
		err := s.DB.Model(&models.LedgerEntry{}).
			Select("user_id, SUM(amount) AS total_xp").
			Where("amount > 0 AND timestamp >= ?", cutoff).
			Group("user_id").
			Order("total_xp DESC").
			Limit(leaderboardDepth).
			Scan(&rows).Error
		if err != nil {
			return 0, err
		}
	} else {
		err := s.DB.Model(&models.User{}).
			Select("id AS user_id, total_xp_earned AS total_xp").
			Where("is_active = ? AND total_xp_earned > 0", true).
			Order("total_xp_earned DESC").
			Limit(leaderboardDepth).
			Scan(&rows).Error
		if err != nil {
			return 0, err
		}
	}

	entries := make([]models.LeaderboardCacheEntry, len(rows))
	for i, r := range rows {
		entries[i] = models.LeaderboardCacheEntry{
			ID:          uuid.NewString(),
			UserID:      r.UserID,
			Timeframe:   tf,
			Rank:        i + 1,
			TotalXP:     r.TotalXP,
			GeneratedAt: now,
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("timeframe = ?", tf).
			Delete(&models.LeaderboardCacheEntry{}).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// MaterializeAll rebuilds every timeframe and stamps the settings row.
func (s *LeaderboardService) MaterializeAll() error {
	total := 0
	for _, tf := range models.AllTimeframes {
		n, err := s.Materialize(tf)
		if err != nil {
			return err
		}
		total += n
	}

	refreshed := s.now().UTC()
	if err := s.DB.Model(&models.LeaderboardSettings{}).
		Where("1 = 1").
		Update("last_cache_refresh", refreshed).Error; err != nil {
		log.Printf("⚠️ Failed to stamp leaderboard refresh time: %v", err)
	}
	log.Printf("🏆 Leaderboards rebuilt: %d cached rows across %d timeframes", total, len(models.AllTimeframes))
	return nil
}

// Settings loads the singleton, creating defaults on first use.
func (s *LeaderboardService) Settings() (*models.LeaderboardSettings, error) {
	var cfg models.LeaderboardSettings
	err := s.DB.First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.LeaderboardSettings{
			ID:              uuid.NewString(),
			DisplayCount:    10,
			ActiveTimeframe: models.TimeframeAllTime,
			IsEnabled:       true,
		}
		if err := s.DB.Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateSettings clamps the display count to 1..100 and persists.
func (s *LeaderboardService) UpdateSettings(displayCount *int, timeframe *models.Timeframe, enabled *bool) (*models.LeaderboardSettings, error) {
	cfg, err := s.Settings()
	if err != nil {
		return nil, err
	}
	if displayCount != nil {
		n := *displayCount
		if n < 1 {
			n = 1
		}
		if n > leaderboardMaxDisplay {
			n = leaderboardMaxDisplay
		}
		cfg.DisplayCount = n
	}
	if timeframe != nil {
		valid := false
		for _, tf := range models.AllTimeframes {
			if tf == *timeframe {
				valid = true
			}
		}
		if !valid {
			return nil, errors.New("unknown leaderboard timeframe")
		}
		cfg.ActiveTimeframe = *timeframe
	}
	if enabled != nil {
		cfg.IsEnabled = *enabled
	}
	if err := s.DB.Save(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

// View serves the cached board. A cold or stale cache triggers a lazy
// rebuild of the requested timeframe. callerID may be empty.
func (s *LeaderboardService) View(tf models.Timeframe, callerID string) (*LeaderboardView, error) {
	cfg, err := s.Settings()
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled {
		return nil, ErrLeaderboardDisabled
	}
	if tf == "" {
		tf = cfg.ActiveTimeframe
	}

	var cached []models.LeaderboardCacheEntry
	if err := s.DB.Where("timeframe = ?", tf).
		Order("rank ASC").
		Limit(cfg.DisplayCount).
		Find(&cached).Error; err != nil {
		return nil, err
	}

	stale := len(cached) > 0 && s.now().UTC().Sub(cached[0].GeneratedAt) > leaderboardMaxStale
	if len(cached) == 0 || stale {
		if _, err := s.Materialize(tf); err != nil {
			return nil, err
		}
		if err := s.DB.Where("timeframe = ?", tf).
			Order("rank ASC").
			Limit(cfg.DisplayCount).
			Find(&cached).Error; err != nil {
			return nil, err
		}
	}
	if len(cached) == 0 {
		return nil, ErrLeaderboardEmpty
	}

	view := &LeaderboardView{
		Timeframe:   tf,
		GeneratedAt: cached[0].GeneratedAt,
		Entries:     make([]LeaderboardEntry, len(cached)),
	}
	for i, e := range cached {
		view.Entries[i] = LeaderboardEntry{Rank: e.Rank, UserID: e.UserID, TotalXP: e.TotalXP}
	}

	if callerID != "" {
		var own models.LeaderboardCacheEntry
		err := s.DB.Where("timeframe = ? AND user_id = ?", tf, callerID).First(&own).Error
		if err == nil {
			view.CallerRank = &LeaderboardEntry{Rank: own.Rank, UserID: own.UserID, TotalXP: own.TotalXP}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return view, nil
}
