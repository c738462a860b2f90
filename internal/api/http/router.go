package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/timeoff-service/internal/api/http/handlers"
	"github.com/spec-kit/timeoff-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Requests       *handlers.RequestsHandler
	Reference      *handlers.ReferenceHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs /metrics. Nil skips the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	requests := api.Group("/requests")
	requests.Post("/", cfg.Requests.Create)
	requests.Get("/", cfg.Requests.List)
	requests.Get("/mine", cfg.Requests.Mine)
	requests.Get("/pending", cfg.Requests.Pending)
	requests.Put("/:id", cfg.Requests.Update)
	requests.Delete("/:id", cfg.Requests.Delete)
	requests.Post("/:id/approve", cfg.Requests.Approve)
	requests.Post("/:id/reject", cfg.Requests.Reject)
	requests.Post("/:id/recall", cfg.Requests.Recall)

	reference := api.Group("/reference")
	reference.Get("/users", cfg.Reference.Users)
	reference.Get("/departments", cfg.Reference.Departments)
	reference.Get("/grades", cfg.Reference.Grades)
}
