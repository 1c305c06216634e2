package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Canvas-Copilot/backend/internal/config"
	"github.com/Canvas-Copilot/backend/internal/handler"
	"github.com/Canvas-Copilot/backend/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler *handler.GradingHandler
	JWTMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.GradingHandler != nil {
		grading := api.Group("/grading", jwtMiddleware)
		deps.GradingHandler.Register(grading)
	}
}
