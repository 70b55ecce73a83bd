package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/services"
	hub "github.com/anjiri1684/campus_manager/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	wsUserKey   = "wsUser"
	wsOpTimeout = 10 * time.Second
)

type wsInbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`

	// first-message auth frame: {"type":"auth","token":"..."}
	Type  string `json:"type"`
	Token string `json:"token"`
}

type wsRoomData struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// WSUpgrade rejects plain HTTP requests and authenticates the handshake when a token is
// given in the query string or Authorization header.
func (h *Handler) WSUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if token != "" {
		user, err := h.wsUser(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(wsUserKey, user)
	}
	return c.Next()
}

func (h *Handler) wsUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := middleware.ParseToken(h.cfg.JWT.Secret, token)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token.")
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token. User not found.")
	}
	if !user.IsActive {
		return nil, fiber.NewError(fiber.StatusForbidden, "Account deactivated.")
	}
	return &user, nil
}

// ServeWS runs one socket: register with the hub, then dispatch client events until the
// connection drops.
func (h *Handler) ServeWS(conn *websocket.Conn) {
	user, _ := conn.Locals(wsUserKey).(*models.User)
	if user == nil {
		user = h.wsFirstMessageAuth(conn)
		if user == nil {
			return
		}
	}

	client := hub.NewClient(user.ID, string(user.Role), conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client)
	_ = client.Send(hub.Envelope{Event: "connected", Data: fiber.Map{"userId": user.ID, "role": user.Role}})

	for {
		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Debug("WebSocket read failed", map[string]interface{}{"userId": user.ID.String()})
			}
			return
		}
		h.handleWSEvent(client, msg)
	}
}

func (h *Handler) wsFirstMessageAuth(conn *websocket.Conn) *models.User {
	var msg wsInbound
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "auth" || msg.Token == "" {
		_ = conn.WriteJSON(hub.Envelope{Event: "error", Data: fiber.Map{"message": "Invalid or missing auth message"}})
		_ = conn.Close()
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()
	user, err := h.wsUser(ctx, msg.Token)
	if err != nil {
		_ = conn.WriteJSON(hub.Envelope{Event: "error", Data: fiber.Map{"message": err.Error()}})
		_ = conn.Close()
		return nil
	}
	return user
}

func (h *Handler) handleWSEvent(client *hub.Client, msg wsInbound) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	fail := func(message string) {
		_ = client.Send(hub.Envelope{Event: "error", Data: fiber.Map{"event": msg.Event, "message": message}})
	}

	switch msg.Event {
	case "join-room":
		var data wsRoomData
		if json.Unmarshal(msg.Data, &data) != nil || data.RoomID == "" {
			fail("roomId is required")
			return
		}
		member, err := h.chat.IsMember(ctx, data.RoomID, client.UserID)
		if err != nil {
			h.log.WithError(err).Error("Room membership check failed", map[string]interface{}{"roomId": data.RoomID})
			fail("Could not join room")
			return
		}
		if !member {
			fail("You are not a member of this room")
			return
		}
		h.hub.JoinRoom(client, data.RoomID)
		_ = client.Send(hub.Envelope{Event: "room-joined", Data: fiber.Map{"roomId": data.RoomID}})

	case "leave-room":
		var data wsRoomData
		if json.Unmarshal(msg.Data, &data) != nil || data.RoomID == "" {
			fail("roomId is required")
			return
		}
		h.hub.LeaveRoom(client, data.RoomID)

	case "send-message":
		var in services.SendMessageInput
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			fail("Invalid message payload")
			return
		}
		if err := validate.Struct(&in); err != nil {
			fail("roomId and message are required")
			return
		}
		in.SenderID = client.UserID
		if _, err := h.chat.Send(ctx, in); err != nil {
			fail(err.Error())
		}

	case "typing":
		var data wsRoomData
		if json.Unmarshal(msg.Data, &data) != nil || !h.hub.InRoom(client, data.RoomID) {
			return
		}
		h.hub.SendToRoomExcept(data.RoomID, client.UserID, "user-typing", fiber.Map{
			"roomId": data.RoomID, "userId": client.UserID, "isTyping": data.IsTyping,
		})

	default:
		fail("Unknown event")
	}
}
