package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	NotificationInfo         = "info"
	NotificationSuccess      = "success"
	NotificationWarning      = "warning"
	NotificationError        = "error"
	NotificationAnnouncement = "announcement"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	CategoryAcademic   = "academic"
	CategoryFee        = "fee"
	CategoryAttendance = "attendance"
	CategoryExam       = "exam"
	CategoryEvent      = "event"
	CategoryGeneral    = "general"
	CategoryEmergency  = "emergency"
	CategorySystem     = "system"
)

// Recipient selection modes.
const (
	RecipientsAll        = "all"
	RecipientsRole       = "role"
	RecipientsSpecific   = "specific"
	RecipientsDepartment = "department"
	RecipientsBatch      = "batch"
)

type Notification struct {
	Base
	Title          string                      `gorm:"size:200;not null" json:"title"`
	Message        string                      `gorm:"type:text;not null" json:"message"`
	Type           string                      `gorm:"size:20;not null" json:"type"`
	Priority       string                      `gorm:"size:10;not null" json:"priority"`
	Category       string                      `gorm:"size:20;not null;index" json:"category"`
	SenderID       uuid.UUID                   `gorm:"type:uuid;not null;index" json:"senderId"`
	Sender         *User                       `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientMode  string                      `gorm:"size:20;not null" json:"recipientType"`
	RecipientValue datatypes.JSON              `json:"recipientValue,omitempty"`
	ScheduledAt    *time.Time                  `gorm:"index" json:"scheduledAt,omitempty"`
	ExpiresAt      *time.Time                  `gorm:"index" json:"expiresAt,omitempty"`
	DispatchedAt   *time.Time                  `gorm:"index" json:"dispatchedAt,omitempty"`
	ActionURL      string                      `gorm:"size:500" json:"actionUrl,omitempty"`
	Attachments    datatypes.JSONSlice[string] `json:"attachments,omitempty"`
	Metadata       datatypes.JSON              `json:"metadata,omitempty"`

	Recipients []NotificationRecipient `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"-"`
}

// NotificationRecipient is one row per addressed user; ReadAt is set once.
type NotificationRecipient struct {
	NotificationID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"notificationId"`
	UserID         uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"userId"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
