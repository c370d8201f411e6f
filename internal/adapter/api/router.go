package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// HealthInfo is reported by GET /health.
type HealthInfo struct {
	Version     string
	Environment string
}

func SetupRouter(app *fiber.App, handler *ChatHandler, info HealthInfo) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"version":  info.Version,
			"env":      info.Environment,
			"products": len(handler.facade.Catalog()),
			"orders":   len(handler.facade.Orders()),
		})
	})

	v1 := app.Group("/v1")
	v1.Get("/products", handler.HandleProducts)
	v1.Get("/orders", handler.HandleOrders)
	v1.Post("/chat", handler.HandleChat)
	v1.Post("/inference/product", handler.HandleProductInference)
	v1.Post("/inference/user", handler.HandleUserInference)
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
