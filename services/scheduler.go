// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRewardScheduler wires the periodic jobs: hourly reward
// distribution and leaderboard rebuilds, six-hourly auto-approval,
// daily security log retention. Returns the scheduler so main can
// Shutdown it on exit.
func StartRewardScheduler(referrals *ReferralService, leaderboards *LeaderboardService) gocron.Scheduler {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every hour: distribute matured referral rewards
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			if _, err := referrals.DistributePendingRewards(); err != nil {
				log.Printf("[Scheduler] Reward distribution error: %v", err)
			}
		}),
	)

	// Every hour: rebuild leaderboard caches
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			if err := leaderboards.MaterializeAll(); err != nil {
				log.Printf("[Scheduler] Leaderboard rebuild error: %v", err)
			}
		}),
	)

	// Every 6 hours: clear the fraud gate on matured low-score rows
	_, _ = sched.NewJob(
		gocron.DurationJob(6*time.Hour),
		gocron.NewTask(func() {
			n, err := referrals.AutoApprovePending()
			if err != nil {
				log.Printf("[Scheduler] Auto-approve error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("✅ Auto-approved %d referral reward(s)", n)
			}
		}),
	)

	// Daily: archive and drop expired security logs
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := referrals.CleanupSecurityLogs(ctx); err != nil {
				log.Printf("[Scheduler] Security log cleanup error: %v", err)
			}
		}),
	)

	return sched
}
