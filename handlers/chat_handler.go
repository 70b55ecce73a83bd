package handlers

import (
	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	chatPageLimit   = 50
	chatRecentLimit = 20
)

func (h *Handler) SendChatMessage(c *fiber.Ctx) error {
	var in services.SendMessageInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.SenderID = currentUser(c).ID
	msg, err := h.chat.Send(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, "Message sent successfully", msg)
}

func (h *Handler) RoomMessages(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, chatPageLimit)
	msgs, total, err := h.chat.Messages(c.UserContext(), c.Params("roomId"), currentUser(c).ID, p)
	if err != nil {
		return err
	}
	return paginated(c, msgs, p, total)
}

func (h *Handler) RecentMessages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", chatRecentLimit)
	if limit <= 0 || limit > utils.MaxLimit {
		limit = chatRecentLimit
	}
	msgs, err := h.chat.Recent(c.UserContext(), c.Params("roomId"), currentUser(c).ID, limit)
	if err != nil {
		return err
	}
	return ok(c, msgs)
}

func (h *Handler) EditChatMessage(c *fiber.Ctx) error {
	id, err := paramUUID(c, "messageId")
	if err != nil {
		return err
	}
	var req struct {
		Message string `json:"message" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.chat.Edit(c.UserContext(), id, currentUser(c).ID, req.Message)
	if err != nil {
		return err
	}
	return okMessage(c, "Message updated successfully", msg)
}

func (h *Handler) DeleteChatMessage(c *fiber.Ctx) error {
	id, err := paramUUID(c, "messageId")
	if err != nil {
		return err
	}
	if err := h.chat.Delete(c.UserContext(), id, currentUser(c).ID); err != nil {
		return err
	}
	return okMessage(c, "Message deleted successfully", nil)
}

func (h *Handler) RoomParticipants(c *fiber.Ctx) error {
	users, err := h.chat.Participants(c.UserContext(), c.Params("roomId"), currentUser(c).ID)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		out = append(out, fiber.Map{"user": u, "isOnline": h.hub != nil && h.hub.IsOnline(u.ID)})
	}
	return ok(c, out)
}

func (h *Handler) ChatRooms(c *fiber.Ctx) error {
	rooms, err := h.chat.Rooms(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, rooms)
}

func (h *Handler) DirectRoom(c *fiber.Ctx) error {
	otherID, err := paramUUID(c, "otherUserId")
	if err != nil {
		return err
	}
	user := currentUser(c)
	if otherID == user.ID {
		return apperrors.BadRequest("Cannot start a chat with yourself")
	}
	room, isNew, err := h.chat.DirectRoom(c.UserContext(), user.ID, otherID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"room": room, "created": isNew})
}

func (h *Handler) CreateClassRoom(c *fiber.Ctx) error {
	classID := c.Params("classId")
	var req struct {
		Name string `json:"name"`
	}
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	if req.Name == "" {
		req.Name = "Class " + classID
	}
	room, isNew, err := h.chat.ClassRoom(c.UserContext(), currentUser(c).ID, classID, req.Name)
	if err != nil {
		return err
	}
	if !isNew {
		return ok(c, room)
	}
	return created(c, "Class chat room created successfully", room)
}

func (h *Handler) JoinRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	user := currentUser(c)
	if err := h.chat.Join(c.UserContext(), roomID, user.ID); err != nil {
		return err
	}
	if h.hub != nil {
		h.hub.JoinUserRoom(user.ID, roomID)
	}
	return okMessage(c, "Joined room successfully", nil)
}

func (h *Handler) LeaveRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	user := currentUser(c)
	if err := h.chat.Leave(c.UserContext(), roomID, user.ID); err != nil {
		return err
	}
	if h.hub != nil {
		h.hub.LeaveUserRoom(user.ID, roomID)
	}
	return okMessage(c, "Left room successfully", nil)
}

func (h *Handler) ChatStats(c *fiber.Ctx) error {
	stats, err := h.chat.Stats(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, stats)
}
