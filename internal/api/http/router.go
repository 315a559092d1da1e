package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/sla-monitor/internal/api/http/handlers"
	"github.com/spec-kit/sla-monitor/internal/auth"
	"github.com/spec-kit/sla-monitor/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	SLA     *handlers.SLAHandler
	Metrics *observability.Metrics

	// AuthMiddleware guards mutating routes; nil leaves them open.
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	sla := app.Group("/sla")
	sla.Get("/policies", cfg.SLA.GetPolicies)
	reload := []fiber.Handler{cfg.SLA.ReloadPolicies}
	if cfg.AuthMiddleware != nil {
		reload = []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleOperator), cfg.SLA.ReloadPolicies}
	}
	sla.Post("/policies/reload", reload...)
	sla.Get("/cycles/last", cfg.SLA.LastCycle)
	sla.Get("/tickets/:id/history", cfg.SLA.TicketHistory)
	sla.Get("/tickets/:id/alerts", cfg.SLA.TicketAlerts)
}
