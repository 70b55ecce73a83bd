package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/gofiber/fiber/v2"
)

func EventRoutes(api fiber.Router, h *handlers.Handler) {
	events := api.Group("/events", h.Authenticated()...)
	staff := middleware.StaffRequired()

	events.Get("/events", h.ListEvents)
	events.Get("/events/:id", h.GetEvent)
	events.Post("/events", staff, h.CreateEvent)
	events.Put("/events/:id", staff, h.UpdateEvent)
	events.Delete("/events/:id", staff, h.DeleteEvent)

	events.Post("/events/:eventId/register", h.RegisterForEvent)
	events.Put("/registrations/:registrationId/cancel", h.CancelRegistration)
	events.Get("/events/:eventId/registrations", staff, h.EventRegistrations)

	events.Get("/clubs", h.ListClubs)
	events.Post("/clubs", staff, h.CreateClub)
	events.Post("/clubs/:clubId/join", h.JoinClub)
	events.Put("/memberships/:membershipId/leave", h.LeaveClub)
	events.Get("/clubs/:clubId/members", h.ClubMembers)
}
