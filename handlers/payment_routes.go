// handlers/payment_routes.go
package handlers

import (
	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPaymentRoutes(app *fiber.App, payments *services.PaymentService) {
	// Called by the payment edge after a successful capture.
	internal := app.Group("/internal/payments", middleware.GatewayAuthMiddleware())

	internal.Post("/fulfill", func(c *fiber.Ctx) error {
		var body struct {
			PaymentRef string                       `json:"payment_ref"`
			Metadata   services.FulfillmentMetadata `json:"metadata"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.PaymentRef == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payment_ref is required"})
		}

		pass, err := payments.Fulfill(body.PaymentRef, body.Metadata)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status": "fulfilled",
			"pass":   pass,
		})
	})

	internal.Post("/sync/:customerId", func(c *fiber.Ctx) error {
		state, err := payments.SyncCustomer(c.Params("customerId"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(state)
	})
}
