package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/gofiber/fiber/v2"
)

func UploadRoutes(api fiber.Router, h *handlers.Handler) {
	uploads := api.Group("/upload", h.Authenticated()...)

	uploads.Get("/signature", h.UploadSignature)
	uploads.Post("/single", h.UploadSingle)
	uploads.Post("/multiple", h.UploadMultiple)
	uploads.Post("/image", h.UploadImage)
	uploads.Post("/document", h.UploadDocument)
	uploads.Get("/:publicId/info", h.UploadInfo)
	uploads.Delete("/:publicId", h.DeleteUpload)
}

// EmailRoutes mixes public and admin endpoints under one prefix, so guards are per route.
func EmailRoutes(api fiber.Router, h *handlers.Handler) {
	email := api.Group("/email")
	admin := middleware.AdminRequired()
	staff := middleware.StaffRequired()

	email.Post("/password-reset", h.SendPasswordResetEmail)

	email.Post("/send", with(h, admin, h.SendEmail)...)
	email.Post("/send-bulk", with(h, admin, h.SendBulkEmail)...)
	email.Post("/welcome", with(h, admin, h.SendWelcomeEmail)...)
	email.Post("/event-invitation", with(h, admin, h.SendEventInvitation)...)
	email.Get("/stats", with(h, admin, h.EmailStats)...)
	email.Post("/test", with(h, admin, h.SendTestEmail)...)
	email.Get("/logs", with(h, admin, h.EmailLogs)...)

	email.Post("/fee-reminder", with(h, staff, h.SendFeeReminder)...)
	email.Post("/exam-notification", with(h, staff, h.SendExamNotification)...)
	email.Post("/attendance-notification", with(h, staff, h.SendAttendanceNotification)...)
}
