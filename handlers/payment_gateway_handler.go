package handlers

import (
	"errors"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var in services.OrderInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if user := currentUser(c); user.Role == models.RoleStudent && in.StudentID != user.ID {
		return apperrors.Forbidden("Students can only pay for themselves")
	}
	payment, order, err := h.payments.CreateOrder(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, "Order created successfully", fiber.Map{
		"orderId":   order.ID,
		"amount":    order.Amount,
		"currency":  order.Currency,
		"receipt":   order.Receipt,
		"keyId":     h.payments.KeyID(),
		"paymentId": payment.ID,
	})
}

func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	var req struct {
		PaymentID string `json:"paymentId" validate:"required"`
		OrderID   string `json:"orderId" validate:"required"`
		Signature string `json:"signature" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	payment, err := h.payments.VerifyCheckout(c.UserContext(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false, "verified": false, "message": "Invalid payment signature",
			})
		}
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
		"message":  "Payment verified successfully",
		"data":     payment,
	})
}

func (h *Handler) GatewayPaymentStatus(c *fiber.Ctx) error {
	payment, err := h.payments.FindPayment(c.UserContext(), c.Params("paymentId"))
	if err != nil {
		return err
	}
	if user := currentUser(c); user.Role == models.RoleStudent && payment.StudentID != user.ID {
		return apperrors.NotFound("Payment not found")
	}
	payment, err = h.payments.SyncWithGateway(c.UserContext(), payment)
	if err != nil {
		return err
	}
	return ok(c, payment)
}

func (h *Handler) GatewayRefund(c *fiber.Ctx) error {
	var req struct {
		PaymentID uuid.UUID `json:"paymentId" validate:"required"`
		Amount    *float64  `json:"amount" validate:"omitempty,gt=0"`
		Reason    string    `json:"reason"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	requester := currentUser(c).ID
	payment, refund, err := h.payments.Refund(c.UserContext(), services.RefundInput{
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		RequestedBy: &requester,
	})
	if err != nil {
		return err
	}
	return created(c, "Refund initiated successfully", fiber.Map{"payment": payment, "refund": refund})
}

func (h *Handler) GatewayRefundStatus(c *fiber.Ctx) error {
	refund, err := h.payments.FetchGatewayRefund(c.Params("refundId"))
	if err != nil {
		return err
	}
	return ok(c, refund)
}

func (h *Handler) CreatePaymentLink(c *fiber.Ctx) error {
	var in services.LinkInput
	if err := bind(c, &in); err != nil {
		return err
	}
	payment, link, err := h.payments.CreatePaymentLink(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, "Payment link created successfully", fiber.Map{
		"paymentId": payment.ID,
		"linkId":    link.ID,
		"shortUrl":  link.ShortURL,
		"status":    link.Status,
	})
}

// RazorpayWebhook verifies the signature over the raw body before anything is parsed.
func (h *Handler) RazorpayWebhook(c *fiber.Ctx) error {
	signature := c.Get("X-Razorpay-Signature")
	if signature == "" {
		return apperrors.BadRequest("Missing webhook signature")
	}
	result, err := h.payments.HandleWebhook(c.UserContext(), c.Body(), signature, c.Get("X-Razorpay-Event-Id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "status": result})
}
