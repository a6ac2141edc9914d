package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-gate-service/internal/api/http/handlers"
	"github.com/spec-kit/access-gate-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tokens         *handlers.TokensHandler
	Admissions     *handlers.AdmissionsHandler
	Memberships    *handlers.MembershipsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/operator/login", cfg.Auth.OperatorLogin)

	tokens := app.Group("/tokens")
	tokens.Post("", cfg.AuthMiddleware.Handle, auth.RequireOperator(), cfg.Tokens.Issue)
	tokens.Get("/:value", cfg.Tokens.Validate)
	tokens.Post("/:value/redeem", cfg.Tokens.Redeem)

	admissions := app.Group("/admissions")
	admissions.Post("", cfg.Admissions.Enqueue)
	admissions.Get("/:subjectID/wait", cfg.Admissions.Wait)

	app.Get("/memberships/:subjectID", cfg.Memberships.Get)

	app.Get("/stats/summary", cfg.AuthMiddleware.Handle, auth.RequireOperator(), cfg.Stats.Summary)
}
