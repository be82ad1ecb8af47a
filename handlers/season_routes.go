// handlers/season_routes.go
package handlers

import (
	"time"

	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/models"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSeasonPassRoutes(app *fiber.App, seasons *services.SeasonPassService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/season-pass", func(c *fiber.Ctx) error {
		state, err := seasons.State(currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(state)
	})

	secured.Post("/season-pass/claim", func(c *fiber.Ctx) error {
		var body struct {
			RewardID string `json:"reward_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.RewardID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_id is required"})
		}

		claim, err := seasons.ClaimReward(currentUserID(c), body.RewardID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(claim)
	})

	// Test/support purchase path; production purchases arrive through
	// payment fulfillment.
	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/seasons", func(c *fiber.Ctx) error {
		var body struct {
			Name               string     `json:"name"`
			StartsAt           time.Time  `json:"starts_at"`
			EndsAt             *time.Time `json:"ends_at"`
			LunarPrice         int64      `json:"lunar_price"`
			TotalityPrice      int64      `json:"totality_price"`
			LunarMultiplier    float64    `json:"lunar_multiplier"`
			TotalityMultiplier float64    `json:"totality_multiplier"`
			Activate           bool       `json:"activate"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		season := models.Season{
			Name:               body.Name,
			StartsAt:           body.StartsAt,
			EndsAt:             body.EndsAt,
			LunarPrice:         body.LunarPrice,
			TotalityPrice:      body.TotalityPrice,
			LunarMultiplier:    body.LunarMultiplier,
			TotalityMultiplier: body.TotalityMultiplier,
		}
		if err := seasons.CreateSeason(&season, body.Activate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(season)
	})

	admin.Post("/season-pass/purchase", func(c *fiber.Ctx) error {
		var body struct {
			UserID     string `json:"user_id"`
			Tier       string `json:"tier"`
			PaymentRef string `json:"payment_ref"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		userID := body.UserID
		if userID == "" {
			userID = currentUserID(c)
		}

		pass, err := seasons.PurchaseActive(userID, models.PassTier(body.Tier), body.PaymentRef)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(pass)
	})
}
