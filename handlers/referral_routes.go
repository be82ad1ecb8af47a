// handlers/referral_routes.go
package handlers

import (
	"time"

	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReferralRoutes(app *fiber.App, referrals *services.ReferralService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/referrals", func(c *fiber.Ctx) error {
		state, err := referrals.State(currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(state)
	})

	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/referrals/queue/:id/approve", func(c *fiber.Ctx) error {
		if err := referrals.ApproveQueueRow(c.Params("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"status": "approved"})
	})

	// Service-to-service routes called by the signup and activity flows.
	internal := app.Group("/internal", middleware.GatewayAuthMiddleware())

	internal.Post("/referrals/attribute", func(c *fiber.Ctx) error {
		var body struct {
			UserID        string     `json:"user_id"`
			Code          string     `json:"code"`
			Email         string     `json:"email"`
			IPAddress     string     `json:"ip_address"`
			UserAgent     string     `json:"user_agent"`
			Fingerprint   string     `json:"device_fingerprint"`
			LinkClickedAt *time.Time `json:"link_clicked_at"`
			SignupAt      *time.Time `json:"signup_at"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.UserID == "" || body.Code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and code are required"})
		}

		signupAt := time.Now().UTC()
		if body.SignupAt != nil {
			signupAt = body.SignupAt.UTC()
		}
		sig := services.SecuritySignals{
			IPAddress:         body.IPAddress,
			UserAgent:         body.UserAgent,
			DeviceFingerprint: body.Fingerprint,
			Email:             body.Email,
			LinkClickedAt:     body.LinkClickedAt,
			SignupAt:          signupAt,
		}

		result, err := referrals.AttributeSignup(body.UserID, body.Code, sig)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	internal.Post("/activity/first-completed", func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}
		if err := referrals.MarkFirstActivityCompleted(body.UserID); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
