package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/metrics"
	"github.com/gofiber/fiber/v2"
)

// Setup mounts every module on app.
func Setup(app *fiber.App, h *handlers.Handler) {
	app.Get("/", h.Root)
	app.Get("/health", h.Health)
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	AuthRoutes(api, h)
	AdminRoutes(api, h)
	TeacherRoutes(api, h)
	StudentRoutes(api, h)
	CommonRoutes(api, h)
	EventRoutes(api, h)
	NotificationRoutes(api, h)
	ChatRoutes(api, h)
	PaymentRoutes(api, h)
	PaymentGatewayRoutes(api, h)
	UploadRoutes(api, h)
	EmailRoutes(api, h)

	WebSocketRoutes(app, h)
}

// with prepends the authentication chain to extra.
func with(h *handlers.Handler, extra ...fiber.Handler) []fiber.Handler {
	return append(h.Authenticated(), extra...)
}
