package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoomDirect = "direct"
	RoomClass  = "class"
	RoomGroup  = "group"
)

const (
	MessageText   = "text"
	MessageFile   = "file"
	MessageImage  = "image"
	MessageSystem = "system"
)

// ChatRoom ids are opaque strings: direct_<a>_<b>, class-<classId> or a uuid for groups.
type ChatRoom struct {
	ID            string           `gorm:"size:120;primaryKey" json:"id"`
	Name          string           `gorm:"size:200" json:"name"`
	Kind          string           `gorm:"size:10;not null;index" json:"kind"`
	CreatedByID   *uuid.UUID       `gorm:"type:uuid" json:"createdById,omitempty"`
	LastMessageAt *time.Time       `gorm:"index" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Members       []ChatRoomMember `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

type ChatRoomMember struct {
	RoomID   string    `gorm:"size:120;primaryKey" json:"roomId"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type ChatMessage struct {
	Base
	RoomID      string         `gorm:"size:120;not null;index:idx_chat_room_created" json:"roomId"`
	SenderID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"senderId"`
	Sender      *User          `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Body        string         `gorm:"type:text;not null" json:"message"`
	Type        string         `gorm:"size:10;not null" json:"messageType"`
	Attachments datatypes.JSON `json:"attachments,omitempty"`
	ReplyToID   *uuid.UUID     `gorm:"type:uuid" json:"replyTo,omitempty"`
	IsEdited    bool           `gorm:"not null" json:"isEdited"`
	EditedAt    *time.Time     `json:"editedAt,omitempty"`
	IsDeleted   bool           `gorm:"not null;index" json:"isDeleted"`
	DeletedAt   *time.Time     `json:"deletedAt,omitempty"`
}
