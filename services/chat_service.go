package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EventNewMessage     = "new-message"
	EventMessageEdited  = "message-edited"
	EventMessageDeleted = "message-deleted"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
)

// DirectRoomID is the same for both orderings of the pair.
func DirectRoomID(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return "direct_" + x + "_" + y
}

func ClassRoomID(classID string) string {
	return "class-" + classID
}

type ChatService struct {
	db      *gorm.DB
	emitter Emitter
	log     logger.Logger
	now     func() time.Time
}

func NewChatService(db *gorm.DB, emitter Emitter, log logger.Logger) *ChatService {
	return &ChatService{db: db, emitter: emitterOrNop(emitter), log: log, now: time.Now}
}

type SendMessageInput struct {
	RoomID      string          `json:"roomId" validate:"required"`
	Message     string          `json:"message" validate:"required"`
	Type        string          `json:"type" validate:"omitempty,oneof=text file image"`
	Attachments json.RawMessage `json:"attachments"`
	ReplyTo     *uuid.UUID      `json:"replyTo"`

	SenderID uuid.UUID `json:"-"`
}

type RoomSummary struct {
	models.ChatRoom
	LastMessage *models.ChatMessage `json:"lastMessage,omitempty"`
	MemberCount int64               `json:"memberCount"`
}

type ChatStats struct {
	TotalMessages  int64            `json:"totalMessages"`
	TotalRooms     int64            `json:"totalRooms"`
	MessagesByType map[string]int64 `json:"messagesByType"`
}

func (s *ChatService) IsMember(ctx context.Context, roomID string, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ChatRoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// requireMember returns 404 for an unknown room and 403 for a non-member.
func (s *ChatService) requireMember(ctx context.Context, roomID string, userID uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Chat room not found")
	}
	ok, err := s.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Forbidden("You are not a member of this chat room")
	}
	return &room, nil
}

func senderPreload(db *gorm.DB) *gorm.DB {
	return db.Select("id", "email", "role", "profile_first_name", "profile_last_name", "profile_avatar")
}

// Send persists a message from a room member and broadcasts it to the room.
func (s *ChatService) Send(ctx context.Context, in SendMessageInput) (*models.ChatMessage, error) {
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		return nil, apperrors.BadRequest("Message cannot be empty")
	}
	if in.Type == "" {
		in.Type = models.MessageText
	}
	if _, err := s.requireMember(ctx, in.RoomID, in.SenderID); err != nil {
		return nil, err
	}

	msg := models.ChatMessage{
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Body:      in.Message,
		Type:      in.Type,
		ReplyToID: in.ReplyTo,
	}
	if len(in.Attachments) > 0 && string(in.Attachments) != "null" {
		msg.Attachments = datatypes.JSON(in.Attachments)
	}
	if err := s.insert(ctx, &msg); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Preload("Sender", senderPreload).First(&msg, "id = ?", msg.ID).Error; err != nil {
		return nil, err
	}
	s.emitter.SendToRoom(in.RoomID, EventNewMessage, &msg)
	return &msg, nil
}

func (s *ChatService) insert(ctx context.Context, msg *models.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatRoom{}).Where("id = ?", msg.RoomID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

// Messages returns a page of a room's live messages in chronological order; page 1 holds
// the most recent ones.
func (s *ChatService) Messages(ctx context.Context, roomID string, userID uuid.UUID, p utils.Pagination) ([]models.ChatMessage, int64, error) {
	if _, err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []models.ChatMessage
	err := q.Preload("Sender", senderPreload).
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.Limit).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}
	reverse(msgs)
	return msgs, total, nil
}

func (s *ChatService) Recent(ctx context.Context, roomID string, userID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > utils.MaxLimit {
		limit = 20
	}
	msgs, _, err := s.Messages(ctx, roomID, userID, utils.Pagination{Page: 1, Limit: limit})
	return msgs, err
}

func reverse(msgs []models.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// Edit changes the body of the caller's own message. Any other message is reported as missing.
func (s *ChatService) Edit(ctx context.Context, messageID, userID uuid.UUID, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.BadRequest("Message cannot be empty")
	}
	res := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", messageID, userID, false).
		Updates(map[string]interface{}{"body": body, "is_edited": true, "edited_at": s.now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("Message not found or you don't have permission to edit it")
	}
	var msg models.ChatMessage
	if err := s.db.WithContext(ctx).Preload("Sender", senderPreload).First(&msg, "id = ?", messageID).Error; err != nil {
		return nil, err
	}
	s.emitter.SendToRoom(msg.RoomID, EventMessageEdited, &msg)
	return &msg, nil
}

// Delete soft-deletes the caller's own message. Any other message is reported as missing.
func (s *ChatService) Delete(ctx context.Context, messageID, userID uuid.UUID) error {
	var msg models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", messageID, userID, false).
		First(&msg).Error
	if err != nil {
		return apperrors.NotFoundOr(err, "Message not found or you don't have permission to delete it")
	}
	res := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id = ? AND is_deleted = ?", messageID, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("Message not found or you don't have permission to delete it")
	}
	s.emitter.SendToRoom(msg.RoomID, EventMessageDeleted, map[string]interface{}{"messageId": messageID, "roomId": msg.RoomID})
	return nil
}

// Participants lists the members of a room, including ones who never posted.
func (s *ChatService) Participants(ctx context.Context, roomID string, userID uuid.UUID) ([]models.User, error) {
	if _, err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_room_members m ON m.user_id = users.id").
		Where("m.room_id = ?", roomID).
		Order("m.joined_at").
		Find(&users).Error
	return users, err
}

// Rooms lists the caller's rooms by last activity, each with its latest live message.
func (s *ChatService) Rooms(ctx context.Context, userID uuid.UUID) ([]RoomSummary, error) {
	var rooms []models.ChatRoom
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_room_members m ON m.room_id = chat_rooms.id").
		Where("m.user_id = ?", userID).
		Order("COALESCE(chat_rooms.last_message_at, chat_rooms.created_at) DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := RoomSummary{ChatRoom: room}
		var last models.ChatMessage
		err := s.db.WithContext(ctx).Preload("Sender", senderPreload).
			Where("room_id = ? AND is_deleted = ?", room.ID, false).
			Order("created_at DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return nil, err
		}
		if last.ID != uuid.Nil {
			summary.LastMessage = &last
		}
		if err := s.db.WithContext(ctx).Model(&models.ChatRoomMember{}).
			Where("room_id = ?", room.ID).Count(&summary.MemberCount).Error; err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// createRoom inserts the room and its members, tolerating concurrent creators. It reports
// whether this call created the room.
func createRoom(tx *gorm.DB, room *models.ChatRoom, members []uuid.UUID, now time.Time) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(room)
	if res.Error != nil {
		return false, res.Error
	}
	created := res.RowsAffected == 1
	if err := addMembers(tx, room.ID, members, now); err != nil {
		return false, err
	}
	return created, nil
}

func addMembers(tx *gorm.DB, roomID string, members []uuid.UUID, now time.Time) error {
	if len(members) == 0 {
		return nil
	}
	rows := make([]models.ChatRoomMember, len(members))
	for i, id := range members {
		rows[i] = models.ChatRoomMember{RoomID: roomID, UserID: id, JoinedAt: now}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 500).Error
}

func systemMessage(tx *gorm.DB, roomID string, sender uuid.UUID, body string) error {
	msg := models.ChatMessage{RoomID: roomID, SenderID: sender, Body: body, Type: models.MessageSystem}
	if err := tx.Create(&msg).Error; err != nil {
		return err
	}
	return tx.Model(&models.ChatRoom{}).Where("id = ?", roomID).Update("last_message_at", msg.CreatedAt).Error
}

// DirectRoom returns the direct room between the caller and otherID, creating it on first use.
func (s *ChatService) DirectRoom(ctx context.Context, userID, otherID uuid.UUID) (*models.ChatRoom, bool, error) {
	if userID == otherID {
		return nil, false, apperrors.BadRequest("Cannot start a chat with yourself")
	}
	var other models.User
	if err := s.db.WithContext(ctx).Select("id").First(&other, "id = ?", otherID).Error; err != nil {
		return nil, false, apperrors.NotFoundOr(err, "User not found")
	}

	roomID := DirectRoomID(userID, otherID)
	now := s.now()
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = createRoom(tx, &models.ChatRoom{ID: roomID, Kind: models.RoomDirect, CreatedByID: &userID}, []uuid.UUID{userID, otherID}, now)
		if err != nil || !created {
			return err
		}
		return systemMessage(tx, roomID, userID, "Chat started")
	})
	if err != nil {
		return nil, false, err
	}

	var room models.ChatRoom
	if err := s.db.WithContext(ctx).Preload("Members.User").First(&room, "id = ?", roomID).Error; err != nil {
		return nil, false, err
	}
	return &room, created, nil
}

// ClassRoom creates the room for a batch with the creator and the batch's students as members.
// Calling it again adds students who joined the batch since.
func (s *ChatService) ClassRoom(ctx context.Context, creatorID uuid.UUID, classID, name string) (*models.ChatRoom, bool, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, false, apperrors.BadRequest("classId is required")
	}
	if name == "" {
		name = "Class " + classID
	}
	roomID := ClassRoomID(classID)
	now := s.now()
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var students []uuid.UUID
		if err := tx.Model(&models.StudentProfile{}).Where("batch = ?", classID).Pluck("user_id", &students).Error; err != nil {
			return err
		}
		members := append([]uuid.UUID{creatorID}, students...)
		var err error
		created, err = createRoom(tx, &models.ChatRoom{ID: roomID, Name: name, Kind: models.RoomClass, CreatedByID: &creatorID}, members, now)
		if err != nil || !created {
			return err
		}
		return systemMessage(tx, roomID, creatorID, "Class chat created")
	})
	if err != nil {
		return nil, false, err
	}
	var room models.ChatRoom
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		return nil, false, err
	}
	s.log.Info("Class chat room ready", map[string]interface{}{"roomId": roomID, "created": created})
	return &room, created, nil
}

func (s *ChatService) joinableRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Chat room not found")
	}
	if room.Kind == models.RoomDirect {
		return nil, apperrors.BadRequest("Direct chats cannot be joined or left")
	}
	return &room, nil
}

func (s *ChatService) Join(ctx context.Context, roomID string, userID uuid.UUID) error {
	if _, err := s.joinableRoom(ctx, roomID); err != nil {
		return err
	}
	if err := addMembers(s.db.WithContext(ctx), roomID, []uuid.UUID{userID}, s.now()); err != nil {
		return err
	}
	s.emitter.SendToRoomExcept(roomID, userID, EventUserJoined, map[string]interface{}{"roomId": roomID, "userId": userID})
	return nil
}

func (s *ChatService) Leave(ctx context.Context, roomID string, userID uuid.UUID) error {
	if _, err := s.joinableRoom(ctx, roomID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.ChatRoomMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("You are not a member of this chat room")
	}
	s.emitter.SendToRoom(roomID, EventUserLeft, map[string]interface{}{"roomId": roomID, "userId": userID})
	return nil
}

// Stats summarises the messages the user has sent and the rooms they belong to.
func (s *ChatService) Stats(ctx context.Context, userID uuid.UUID) (*ChatStats, error) {
	stats := &ChatStats{MessagesByType: map[string]int64{}}
	live := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.ChatMessage{}).
			Where("sender_id = ? AND is_deleted = ?", userID, false)
	}
	if err := live().Count(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.ChatRoomMember{}).
		Where("user_id = ?", userID).Count(&stats.TotalRooms).Error; err != nil {
		return nil, err
	}
	var buckets []struct {
		Name  string
		Count int64
	}
	if err := live().Select("type AS name, COUNT(*) AS count").Group("type").Scan(&buckets).Error; err != nil {
		return nil, err
	}
	for _, b := range buckets {
		stats.MessagesByType[b.Name] = b.Count
	}
	return stats, nil
}
