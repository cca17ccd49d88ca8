package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/v1")
	v1.Post("/tickets", cfg.Tickets.CreateTicket)
	v1.Get("/tickets", cfg.Tickets.ListTickets)
	v1.Get("/tickets/by-ref/:ref", cfg.Tickets.GetTicketByRef)
	v1.Get("/tickets/:id", cfg.Tickets.GetTicket)
	v1.Patch("/tickets/:id", cfg.Tickets.EditTicket)
	v1.Post("/tickets/:id/capture", cfg.Tickets.CaptureTicket)
	v1.Post("/tickets/:id/finalize", cfg.Tickets.FinalizeTicket)
	v1.Post("/tickets/:id/cancel", cfg.Tickets.CancelTicket)
	v1.Post("/tickets/:id/reopen", cfg.Tickets.ReopenTicket)
}
