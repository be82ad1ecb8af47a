// handlers/common.go
package handlers

import (
	"errors"

	"eclipse-rewards-system/pkg/logger"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// serviceError maps service sentinels onto HTTP responses so every route
// reports failures the same way.
func serviceError(c *fiber.Ctx, err error) error {
	var cooldown *services.CooldownError
	if errors.As(err, &cooldown) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":           "claim cooldown not met",
			"remaining_hours": cooldown.RemainingHours,
		})
	}
	var recovery *services.RecoveryCostError
	if errors.As(err, &recovery) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "insufficient XP for streak recovery",
			"cost":    recovery.Cost,
			"balance": recovery.Balance,
		})
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	case errors.Is(err, services.ErrRewardNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "reward not found"})
	case errors.Is(err, services.ErrNoActiveSeason):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active season"})
	case errors.Is(err, services.ErrCodeInvalid):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "referral code not found"})

	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrShareDuplicate),
		errors.Is(err, services.ErrAlreadyReferred),
		errors.Is(err, services.ErrPassAlreadyOwned):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrInsufficientBalance):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrFutureDate),
		errors.Is(err, services.ErrInvalidTier),
		errors.Is(err, services.ErrShareKindUnknown):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrUserInactive),
		errors.Is(err, services.ErrOutsideStreakWindow),
		errors.Is(err, services.ErrTierInsufficient),
		errors.Is(err, services.ErrLevelLocked),
		errors.Is(err, services.ErrSelfReferral),
		errors.Is(err, services.ErrReferrerBlocked),
		errors.Is(err, services.ErrShareNotEligible),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrLeaderboardDisabled):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrLeaderboardEmpty):
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"entries": []interface{}{},
			"message": "leaderboard has no entries yet",
		})
	}

	logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled service error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
		"cause": err.Error(),
	})
}

func currentUserID(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}
