package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(api fiber.Router, h *handlers.Handler) {
	payments := api.Group("/payments", h.Authenticated()...)
	admin := middleware.AdminRequired()

	payments.Get("/payments", h.ListPayments)
	payments.Post("/payments", h.CreatePayment)
	payments.Get("/payments/:id", h.GetPayment)
	payments.Get("/payments/:id/receipt", h.PaymentReceipt)
	payments.Put("/payments/:id/status", admin, h.UpdatePaymentStatus)

	payments.Get("/student/:studentId/methods", h.StudentPaymentMethods)
	payments.Post("/methods", h.CreatePaymentMethod)
	payments.Put("/methods/:id", h.UpdatePaymentMethod)
	payments.Delete("/methods/:id", h.DeletePaymentMethod)

	payments.Post("/refunds", admin, h.CreateRefund)
	payments.Put("/refunds/:id/status", admin, h.UpdateRefundStatus)
	payments.Get("/refunds", admin, h.ListRefunds)

	payments.Get("/gateways", admin, h.ListGatewayConfigs)
	payments.Post("/gateways", admin, h.CreateGatewayConfig)
	payments.Put("/gateways/:id", admin, h.UpdateGatewayConfig)

	payments.Get("/stats", middleware.StaffRequired(), h.PaymentStats)
}

// PaymentGatewayRoutes mounts the Razorpay flow. The webhook carries no bearer token, so
// authentication is attached per route instead of on the group.
func PaymentGatewayRoutes(api fiber.Router, h *handlers.Handler) {
	gw := api.Group("/payment-gateway/razorpay")

	gw.Post("/webhook", h.RazorpayWebhook)

	gw.Post("/order", with(h, h.CreateOrder)...)
	gw.Post("/verify", with(h, h.VerifyPayment)...)
	gw.Get("/payment/:paymentId/status", with(h, h.GatewayPaymentStatus)...)
	gw.Post("/refund", with(h, middleware.AdminRequired(), h.GatewayRefund)...)
	gw.Get("/refund/:refundId/status", with(h, middleware.AdminRequired(), h.GatewayRefundStatus)...)
	gw.Post("/link", with(h, middleware.StaffRequired(), h.CreatePaymentLink)...)
}
