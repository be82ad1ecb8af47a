package services

import (
	"errors"
	"fmt"
)

// Engine errors are typed so the HTTP layer can map them to status codes
// without string matching. Policy errors carry the specifics the caller
// needs to render (remaining hours, costs).

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient XP balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserInactive        = errors.New("user is not active")

	ErrAlreadyClaimed       = errors.New("already claimed")
	ErrOutsideStreakWindow  = errors.New("cannot recover — outside streak period")
	ErrFutureDate           = errors.New("cannot claim a future date")
	ErrRateLimited          = errors.New("too many claim attempts, try again later")

	ErrNoActiveSeason      = errors.New("no active season")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrTierInsufficient    = errors.New("season pass tier insufficient for this reward")
	ErrLevelLocked         = errors.New("reward level not yet unlocked")
	ErrPassAlreadyOwned    = errors.New("season pass already owned for this season")
	ErrInvalidTier         = errors.New("invalid season pass tier")

	ErrCodeInvalid      = errors.New("referral code is invalid or inactive")
	ErrCodeExpired      = errors.New("affiliate code has expired")
	ErrSelfReferral     = errors.New("cannot refer yourself")
	ErrAlreadyReferred  = errors.New("user already has a referral attribution")
	ErrReferrerBlocked  = errors.New("referrer is temporarily blocked")

	ErrShareDuplicate    = errors.New("already shared")
	ErrShareNotEligible  = errors.New("not eligible for this share")
	ErrShareKindUnknown  = errors.New("unknown share kind")

	ErrLeaderboardEmpty    = errors.New("leaderboard is empty — no users have XP yet")
	ErrLeaderboardDisabled = errors.New("leaderboard is disabled")
)

// CooldownError reports how long until the next daily claim is accepted.
type CooldownError struct {
	RemainingHours float64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("23-hour cooldown not met (≈%.1fh remaining)", e.RemainingHours)
}

// RecoveryCostError reports an unaffordable recovery attempt.
type RecoveryCostError struct {
	Cost    int64
	Balance int64
}

func (e *RecoveryCostError) Error() string {
	return fmt.Sprintf("recovery costs %d XP but balance is %d", e.Cost, e.Balance)
}
