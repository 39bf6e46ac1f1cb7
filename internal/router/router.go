package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/risk-alert-api/internal/config"
	"github.com/noah-isme/risk-alert-api/internal/handler"
	"github.com/noah-isme/risk-alert-api/internal/middleware"
	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StudentHandler *handler.StudentHandler
	UploadHandler  *handler.UploadHandler
	AlertHandler   *handler.AlertHandler
	JWTMiddleware  fiber.Handler
	HealthChecks   map[string]handler.Pinger
	// UploadRateLimit caps roster uploads per mentor per minute. Zero disables it.
	UploadRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	students := api.Group("/students", jwtMiddleware)
	if deps.UploadHandler != nil {
		guards := []fiber.Handler{middleware.RequireRole(models.RoleMentor)}
		if deps.UploadRateLimit > 0 {
			guards = append(guards, middleware.RateLimit("roster_upload", deps.UploadRateLimit, time.Minute))
		}
		deps.UploadHandler.Register(students, guards...)
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(students)
	}

	if deps.AlertHandler != nil {
		alerts := api.Group("/alerts", jwtMiddleware, middleware.RequireRole(models.RoleMentor))
		deps.AlertHandler.Register(alerts)
	}
}
