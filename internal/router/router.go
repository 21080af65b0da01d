package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/markwise/markwise-api/internal/config"
	"github.com/markwise/markwise-api/internal/handler"
	"github.com/markwise/markwise-api/internal/middleware"
	"github.com/markwise/markwise-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluateHandler    *handler.EvaluateHandler
	OCREvaluateHandler *handler.OCREvaluateHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	evaluate := api.Group("", middleware.RateLimit("evaluate", 30, time.Minute))
	if deps.EvaluateHandler != nil {
		deps.EvaluateHandler.Register(evaluate)
	}
	if deps.OCREvaluateHandler != nil {
		deps.OCREvaluateHandler.Register(evaluate)
	}
}
