package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventNewNotification   = "new-notification"
	EventBulkNotification  = "bulk-notification"
	EventClassNotification = "class-notification"
)

type NotificationService struct {
	db      *gorm.DB
	emitter Emitter
	sms     notifications.SMSSender
	log     logger.Logger
	now     func() time.Time
}

func NewNotificationService(db *gorm.DB, emitter Emitter, sms notifications.SMSSender, log logger.Logger) *NotificationService {
	if sms == nil {
		sms = notifications.NoopSMS{}
	}
	return &NotificationService{db: db, emitter: emitterOrNop(emitter), sms: sms, log: log, now: time.Now}
}

type NotificationInput struct {
	Title         string                 `json:"title" validate:"required,max=200"`
	Message       string                 `json:"message" validate:"required"`
	Type          string                 `json:"type" validate:"omitempty,oneof=info success warning error announcement"`
	Priority      string                 `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category      string                 `json:"category" validate:"omitempty,oneof=academic fee attendance exam event general emergency system"`
	RecipientType string                 `json:"recipientType" validate:"omitempty,oneof=all role specific department batch"`
	Roles         []string               `json:"roles" validate:"omitempty,dive,oneof=admin teacher student"`
	UserIDs       []uuid.UUID            `json:"userIds"`
	Department    string                 `json:"department"`
	Batch         string                 `json:"batch"`
	ScheduledAt   *time.Time             `json:"scheduledAt"`
	ExpiresAt     *time.Time             `json:"expiresAt"`
	ActionURL     string                 `json:"actionUrl"`
	Attachments   []string               `json:"attachments"`
	Metadata      map[string]interface{} `json:"metadata"`

	SenderID uuid.UUID `json:"-"`
}

func (in *NotificationInput) defaults() {
	if in.Type == "" {
		in.Type = models.NotificationInfo
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if in.Category == "" {
		in.Category = models.CategoryGeneral
	}
	if in.RecipientType == "" {
		in.RecipientType = models.RecipientsAll
	}
}

func (in *NotificationInput) recipientValue() interface{} {
	switch in.RecipientType {
	case models.RecipientsRole:
		return in.Roles
	case models.RecipientsSpecific:
		return in.UserIDs
	case models.RecipientsDepartment:
		return in.Department
	case models.RecipientsBatch:
		return in.Batch
	}
	return nil
}

// NotificationView is a notification as seen by one recipient.
type NotificationView struct {
	models.Notification
	IsRead bool       `json:"isRead"`
	ReadAt *time.Time `json:"readAt,omitempty"`
}

type NotificationStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	ByType     map[string]int64 `json:"byType"`
	ByCategory map[string]int64 `json:"byCategory"`
}

// Create stores a notification, resolves its recipients and pushes it to each of them
// unless it is scheduled for later.
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (*models.Notification, []uuid.UUID, error) {
	n, recipients, err := s.store(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if n.DispatchedAt != nil {
		s.push(n, recipients)
	}
	return n, recipients, nil
}

// Bulk creates a role notification and announces it to every listed role room.
func (s *NotificationService) Bulk(ctx context.Context, in NotificationInput, roles []string) (*models.Notification, []uuid.UUID, error) {
	if len(roles) == 0 {
		return nil, nil, apperrors.BadRequest("recipientRoles is required")
	}
	in.RecipientType = models.RecipientsRole
	in.Roles = roles
	n, recipients, err := s.store(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if n.DispatchedAt != nil {
		for _, role := range roles {
			s.emitter.SendToRole(role, EventBulkNotification, n)
		}
		s.sendSMS(n, recipients)
	}
	return n, recipients, nil
}

// Class notifies each student of a batch and the class chat room of that batch.
func (s *NotificationService) Class(ctx context.Context, in NotificationInput, classID string) (*models.Notification, []uuid.UUID, error) {
	if classID == "" {
		return nil, nil, apperrors.BadRequest("classId is required")
	}
	in.RecipientType = models.RecipientsBatch
	in.Batch = classID
	n, recipients, err := s.store(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if n.DispatchedAt != nil {
		s.push(n, recipients)
		s.emitter.SendToRoom(ClassRoomID(classID), EventClassNotification, n)
	}
	return n, recipients, nil
}

func (s *NotificationService) store(ctx context.Context, in NotificationInput) (*models.Notification, []uuid.UUID, error) {
	in.defaults()
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, nil, apperrors.BadRequest("expiresAt must be in the future")
	}

	value, err := json.Marshal(in.recipientValue())
	if err != nil {
		return nil, nil, err
	}
	n := models.Notification{
		Title:          in.Title,
		Message:        in.Message,
		Type:           in.Type,
		Priority:       in.Priority,
		Category:       in.Category,
		SenderID:       in.SenderID,
		RecipientMode:  in.RecipientType,
		RecipientValue: datatypes.JSON(value),
		ScheduledAt:    in.ScheduledAt,
		ExpiresAt:      in.ExpiresAt,
		ActionURL:      in.ActionURL,
		Attachments:    datatypes.JSONSlice[string](in.Attachments),
	}
	if in.Metadata != nil {
		meta, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, nil, err
		}
		n.Metadata = datatypes.JSON(meta)
	}
	if in.ScheduledAt == nil || !in.ScheduledAt.After(now) {
		n.DispatchedAt = &now
	}

	var recipients []uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		recipients, err = s.resolveRecipients(tx, &in)
		if err != nil {
			return err
		}
		if err := tx.Create(&n).Error; err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}
		rows := make([]models.NotificationRecipient, len(recipients))
		for i, id := range recipients {
			rows[i] = models.NotificationRecipient{NotificationID: n.ID, UserID: id, CreatedAt: now}
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("Notification created", map[string]interface{}{
		"notificationId": n.ID, "recipients": len(recipients), "scheduled": n.DispatchedAt == nil,
	})
	return &n, recipients, nil
}

func (s *NotificationService) resolveRecipients(tx *gorm.DB, in *NotificationInput) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	users := tx.Model(&models.User{}).Where("users.is_active = ?", true)

	switch in.RecipientType {
	case models.RecipientsAll:
	case models.RecipientsRole:
		if len(in.Roles) == 0 {
			return nil, apperrors.BadRequest("roles are required for role notifications")
		}
		users = users.Where("users.role IN ?", in.Roles)
	case models.RecipientsSpecific:
		if len(in.UserIDs) == 0 {
			return nil, apperrors.BadRequest("userIds are required for specific notifications")
		}
		users = users.Where("users.id IN ?", in.UserIDs)
	case models.RecipientsDepartment:
		if in.Department == "" {
			return nil, apperrors.BadRequest("department is required for department notifications")
		}
		users = users.
			Joins("LEFT JOIN student_profiles ON student_profiles.user_id = users.id").
			Joins("LEFT JOIN teacher_profiles ON teacher_profiles.user_id = users.id").
			Where("(student_profiles.department = ? OR teacher_profiles.department = ?)", in.Department, in.Department)
	case models.RecipientsBatch:
		if in.Batch == "" {
			return nil, apperrors.BadRequest("batch is required for batch notifications")
		}
		users = users.
			Joins("JOIN student_profiles ON student_profiles.user_id = users.id").
			Where("student_profiles.batch = ?", in.Batch)
	default:
		return nil, apperrors.BadRequest("Invalid recipient type")
	}

	if err := users.Pluck("users.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *NotificationService) push(n *models.Notification, recipients []uuid.UUID) {
	for _, id := range recipients {
		s.emitter.SendToUser(id, EventNewNotification, n)
	}
	s.sendSMS(n, recipients)
}

// sendSMS texts urgent and emergency notifications to recipients with a phone number.
func (s *NotificationService) sendSMS(n *models.Notification, recipients []uuid.UUID) {
	if !s.sms.Enabled() || len(recipients) == 0 {
		return
	}
	if n.Priority != models.PriorityUrgent && n.Category != models.CategoryEmergency {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var phones []string
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id IN ? AND profile_phone <> ''", recipients).
			Pluck("profile_phone", &phones).Error
		if err != nil {
			s.log.WithError(err).Error("Failed to load SMS recipients", map[string]interface{}{"notificationId": n.ID})
			return
		}
		body := n.Title + ": " + n.Message
		for _, phone := range phones {
			if err := s.sms.SendSMS(ctx, phone, body); err != nil {
				s.log.WithError(err).Warn("SMS delivery failed", map[string]interface{}{"notificationId": n.ID})
			}
		}
	}()
}

func (s *NotificationService) visibleTo(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("notifications").
		Joins("JOIN notification_recipients nr ON nr.notification_id = notifications.id").
		Where("nr.user_id = ?", userID).
		Where("notifications.dispatched_at IS NOT NULL").
		Where("(notifications.expires_at IS NULL OR notifications.expires_at > ?)", s.now())
}

// ListForUser returns the dispatched, unexpired notifications addressed to userID, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID, p utils.Pagination, unreadOnly bool) ([]NotificationView, int64, error) {
	q := s.visibleTo(ctx, userID)
	if unreadOnly {
		q = q.Where("nr.read_at IS NULL")
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []struct {
		ID     uuid.UUID
		ReadAt *time.Time
	}
	err := q.Select("notifications.id AS id, nr.read_at AS read_at").
		Order("notifications.created_at DESC").
		Offset(p.Offset()).Limit(p.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return []NotificationView{}, total, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var list []models.Notification
	if err := s.db.WithContext(ctx).Preload("Sender").Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]models.Notification, len(list))
	for _, n := range list {
		byID[n.ID] = n
	}

	views := make([]NotificationView, 0, len(rows))
	for _, r := range rows {
		n, ok := byID[r.ID]
		if !ok {
			continue
		}
		views = append(views, NotificationView{Notification: n, IsRead: r.ReadAt != nil, ReadAt: r.ReadAt})
	}
	return views, total, nil
}

// MarkRead records the read once. Reading again is a no-op; a non-recipient gets 404.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.NotificationRecipient{}).
		Where("notification_id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", s.now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.NotificationRecipient{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.NotFound("Notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.NotificationRecipient{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", s.now())
	return res.RowsAffected, res.Error
}

// Delete removes a notification sent by userID. Other callers get 404.
func (s *NotificationService) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND sender_id = ?", notificationID, userID).Delete(&models.Notification{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("Notification not found")
		}
		return tx.Where("notification_id = ?", notificationID).Delete(&models.NotificationRecipient{}).Error
	})
}

func (s *NotificationService) Stats(ctx context.Context, userID uuid.UUID) (*NotificationStats, error) {
	stats := &NotificationStats{ByType: map[string]int64{}, ByCategory: map[string]int64{}}
	if err := s.visibleTo(ctx, userID).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := s.visibleTo(ctx, userID).Where("nr.read_at IS NULL").Count(&stats.Unread).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Name  string
		Count int64
	}
	var byType, byCategory []bucket
	if err := s.visibleTo(ctx, userID).Select("notifications.type AS name, COUNT(*) AS count").
		Group("notifications.type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	if err := s.visibleTo(ctx, userID).Select("notifications.category AS name, COUNT(*) AS count").
		Group("notifications.category").Scan(&byCategory).Error; err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[b.Name] = b.Count
	}
	for _, b := range byCategory {
		stats.ByCategory[b.Name] = b.Count
	}
	return stats, nil
}

// DispatchDue pushes scheduled notifications whose time has come. Each one is claimed with
// a conditional UPDATE so concurrent runs deliver it once.
func (s *NotificationService) DispatchDue(ctx context.Context) (int, error) {
	now := s.now()
	var due []models.Notification
	err := s.db.WithContext(ctx).
		Where("dispatched_at IS NULL AND scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at").
		Limit(200).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for i := range due {
		n := &due[i]
		claim := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND dispatched_at IS NULL", n.ID).
			Update("dispatched_at", now)
		if claim.Error != nil {
			return dispatched, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}
		n.DispatchedAt = &now

		var recipients []uuid.UUID
		if err := s.db.WithContext(ctx).Model(&models.NotificationRecipient{}).
			Where("notification_id = ?", n.ID).Pluck("user_id", &recipients).Error; err != nil {
			return dispatched, err
		}
		s.push(n, recipients)
		dispatched++
	}
	return dispatched, nil
}

// PurgeExpired deletes notifications that expired before cutoff together with their recipient rows.
func (s *NotificationService) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Model(&models.Notification{}).
			Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("notification_id IN ?", ids).Delete(&models.NotificationRecipient{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Notification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
