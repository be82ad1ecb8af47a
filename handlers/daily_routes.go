// handlers/daily_routes.go
package handlers

import (
	"time"

	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupDailyRewardRoutes(app *fiber.App, daily *services.DailyRewardService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/daily-rewards", func(c *fiber.Ctx) error {
		calendar, err := daily.Calendar(currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(calendar)
	})

	secured.Post("/daily-rewards/claim", func(c *fiber.Ctx) error {
		var body struct {
			Date *string `json:"date"` // YYYY-MM-DD; omitted means today
		}
		if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		var claimDate *time.Time
		if body.Date != nil {
			parsed, err := time.ParseInLocation("2006-01-02", *body.Date, time.UTC)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
			}
			claimDate = &parsed
		}

		outcome, err := daily.Claim(currentUserID(c), claimDate, c.IP(), c.Get("User-Agent"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(outcome)
	})
}
