// handlers/rewards_routes.go
package handlers

import (
	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/models"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, xp *services.XPEngine, badges *services.BadgeService) {
	// 🔐 Secured routes — require user context (userID, roles)
	// The gateway forwards paths like /api/v1/rewards/s/... -> /s/...
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/rewards/summary", func(c *fiber.Ctx) error {
		summary, err := xp.Summary(currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(summary)
	})

	secured.Get("/rewards/badges", func(c *fiber.Ctx) error {
		overview, err := badges.Overview(currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(overview)
	})

	secured.Get("/rewards/ledger", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		entries, err := xp.RecentLedger(currentUserID(c), limit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	// Admin: direct grant, used by support tooling
	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var body struct {
			UserID   string `json:"user_id"`
			Amount   int64  `json:"amount"`
			Activity string `json:"activity"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.UserID == "" || body.Activity == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and activity are required"})
		}

		result, err := xp.Grant(body.UserID, body.Amount, models.ActivityKind(body.Activity), services.GrantRefs{})
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})
}
