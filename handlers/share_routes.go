// handlers/share_routes.go
package handlers

import (
	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/models"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupShareRoutes(app *fiber.App, shares *services.ShareService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/shares/confirm", func(c *fiber.Ctx) error {
		var body struct {
			ShareKind       string `json:"share_kind"`
			RelatedObjectID string `json:"related_object_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.ShareKind == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "share_kind is required"})
		}

		outcome, err := shares.ConfirmShare(currentUserID(c), models.ShareKind(body.ShareKind), body.RelatedObjectID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(outcome)
	})

	secured.Post("/shares/event", func(c *fiber.Ctx) error {
		var body struct {
			ShareKind       string `json:"share_kind"`
			Event           string `json:"event"`
			RelatedObjectID string `json:"related_object_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.ShareKind == "" || body.Event == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "share_kind and event are required"})
		}

		if err := shares.RecordEvent(currentUserID(c), models.ShareKind(body.ShareKind), body.Event, body.RelatedObjectID); err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "recorded"})
	})

	secured.Get("/shares", func(c *fiber.Ctx) error {
		history, err := shares.History(currentUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"shares": history})
	})
}
