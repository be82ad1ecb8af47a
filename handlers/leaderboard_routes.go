// handlers/leaderboard_routes.go
package handlers

import (
	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/models"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboards *services.LeaderboardService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		tf := models.Timeframe(c.Query("timeframe"))
		view, err := leaderboards.View(tf, currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(view)
	})

	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/leaderboard/refresh", func(c *fiber.Ctx) error {
		if err := leaderboards.MaterializeAll(); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"status": "refreshed"})
	})

	admin.Get("/leaderboard/settings", func(c *fiber.Ctx) error {
		cfg, err := leaderboards.Settings()
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(cfg)
	})

	admin.Patch("/leaderboard/settings", func(c *fiber.Ctx) error {
		var body struct {
			DisplayCount *int    `json:"display_count"`
			Timeframe    *string `json:"timeframe"`
			IsEnabled    *bool   `json:"is_enabled"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		var tf *models.Timeframe
		if body.Timeframe != nil {
			v := models.Timeframe(*body.Timeframe)
			tf = &v
		}

		cfg, err := leaderboards.UpdateSettings(body.DisplayCount, tf, body.IsEnabled)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(cfg)
	})
}
