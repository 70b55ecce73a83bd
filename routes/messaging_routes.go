package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func NotificationRoutes(api fiber.Router, h *handlers.Handler) {
	notifications := api.Group("/notifications", h.Authenticated()...)

	notifications.Post("/", h.CreateNotification)
	notifications.Get("/", h.ListNotifications)
	notifications.Get("/stats", h.NotificationStats)
	notifications.Patch("/mark-all-read", h.MarkAllNotificationsRead)
	notifications.Post("/bulk", middleware.AdminRequired(), h.BulkNotification)
	notifications.Post("/class", middleware.StaffRequired(), h.ClassNotification)
	notifications.Patch("/:notificationId/read", h.MarkNotificationRead)
	notifications.Delete("/:notificationId", h.DeleteNotification)
}

func ChatRoutes(api fiber.Router, h *handlers.Handler) {
	chat := api.Group("/chat", h.Authenticated()...)

	chat.Post("/message", h.SendChatMessage)
	chat.Put("/message/:messageId", h.EditChatMessage)
	chat.Delete("/message/:messageId", h.DeleteChatMessage)

	chat.Get("/rooms", h.ChatRooms)
	chat.Get("/room/:roomId/messages", h.RoomMessages)
	chat.Get("/room/:roomId/recent", h.RecentMessages)
	chat.Get("/room/:roomId/participants", h.RoomParticipants)
	chat.Post("/room/:roomId/join", h.JoinRoom)
	chat.Post("/room/:roomId/leave", h.LeaveRoom)

	chat.Get("/direct/:otherUserId", h.DirectRoom)
	chat.Post("/class/:classId", middleware.StaffRequired(), h.CreateClassRoom)
	chat.Get("/stats", h.ChatStats)
}

func WebSocketRoutes(app *fiber.App, h *handlers.Handler) {
	app.Use("/ws", h.WSUpgrade)
	app.Get("/ws", websocket.New(h.ServeWS))
}
