package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler        *handler.EvaluationHandler
	EvaluationHistoryHandler *handler.EvaluationHistoryHandler
	HealthPingers            map[string]handler.HealthPinger
	JWTMiddleware            fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthPingers))

	// Optional auth; a no-op when no JWT secret is configured.
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		app.Post("/evaluate",
			jwtMiddleware,
			middleware.RateLimit("evaluate", cfg.RateLimitMax, cfg.RateLimitWindow),
			deps.EvaluationHandler.Evaluate,
		)
	}

	if deps.EvaluationHistoryHandler != nil {
		history := api.Group("/evaluations", jwtMiddleware)
		deps.EvaluationHistoryHandler.Register(history)
	}
}
