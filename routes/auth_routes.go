package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(api fiber.Router, h *handlers.Handler) {
	auth := api.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Post("/register/student", h.RegisterStudent)
	auth.Post("/forgot-password", h.ForgotPassword)
	auth.Post("/reset-password", h.ResetPassword)
	auth.Get("/me", append(h.Authenticated(), h.Me)...)
}
