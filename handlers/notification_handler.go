package handlers

import (
	"github.com/anjiri1684/campus_manager/services"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) CreateNotification(c *fiber.Ctx) error {
	var in services.NotificationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.SenderID = currentUser(c).ID
	n, recipients, err := h.notifications.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, "Notification created successfully", fiber.Map{
		"notification": n, "recipientCount": len(recipients),
	})
}

func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	items, total, err := h.notifications.ListForUser(c.UserContext(), currentUser(c).ID, p, c.QueryBool("unreadOnly"))
	if err != nil {
		return err
	}
	return paginated(c, items, p, total)
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := paramUUID(c, "notificationId")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), id, currentUser(c).ID); err != nil {
		return err
	}
	return okMessage(c, "Notification marked as read", nil)
}

func (h *Handler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := h.notifications.MarkAllRead(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return okMessage(c, "All notifications marked as read", fiber.Map{"updated": n})
}

func (h *Handler) DeleteNotification(c *fiber.Ctx) error {
	id, err := paramUUID(c, "notificationId")
	if err != nil {
		return err
	}
	if err := h.notifications.Delete(c.UserContext(), id, currentUser(c).ID); err != nil {
		return err
	}
	return okMessage(c, "Notification deleted successfully", nil)
}

func (h *Handler) NotificationStats(c *fiber.Ctx) error {
	stats, err := h.notifications.Stats(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, stats)
}

func (h *Handler) BulkNotification(c *fiber.Ctx) error {
	var req struct {
		services.NotificationInput
		RecipientRoles []string `json:"recipientRoles" validate:"required,min=1,dive,oneof=admin teacher student"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	in := req.NotificationInput
	in.SenderID = currentUser(c).ID
	n, recipients, err := h.notifications.Bulk(c.UserContext(), in, req.RecipientRoles)
	if err != nil {
		return err
	}
	return created(c, "Bulk notification sent successfully", fiber.Map{
		"notification": n, "recipientCount": len(recipients),
	})
}

func (h *Handler) ClassNotification(c *fiber.Ctx) error {
	var req struct {
		services.NotificationInput
		ClassID string `json:"classId" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	in := req.NotificationInput
	in.SenderID = currentUser(c).ID
	n, recipients, err := h.notifications.Class(c.UserContext(), in, req.ClassID)
	if err != nil {
		return err
	}
	return created(c, "Class notification sent successfully", fiber.Map{
		"notification": n, "recipientCount": len(recipients),
	})
}
