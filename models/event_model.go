package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventUpcoming  = "upcoming"
	EventOngoing   = "ongoing"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

const (
	RegistrationRegistered = "registered"
	RegistrationAttended   = "attended"
	RegistrationCancelled  = "cancelled"
)

type Event struct {
	Base
	Title                string                      `gorm:"size:200;not null" json:"title"`
	Description          string                      `gorm:"type:text" json:"description"`
	Type                 string                      `gorm:"size:20;not null;index" json:"eventType"`
	Status               string                      `gorm:"size:20;not null;index" json:"status"`
	StartDate            time.Time                   `gorm:"not null;index" json:"startDate"`
	EndDate              time.Time                   `gorm:"not null" json:"endDate"`
	Venue                string                      `gorm:"size:200" json:"venue"`
	OrganizerID          uuid.UUID                   `gorm:"type:uuid;not null;index" json:"organizerId"`
	Organizer            *User                       `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
	MaxParticipants      int                         `json:"maxParticipants"`
	RegistrationRequired bool                        `gorm:"not null" json:"registrationRequired"`
	RegistrationDeadline *time.Time                  `json:"registrationDeadline,omitempty"`
	Fee                  float64                     `gorm:"type:numeric(12,2)" json:"fee"`
	TargetAudience       datatypes.JSONSlice[string] `json:"targetAudience"`
	Tags                 datatypes.JSONSlice[string] `json:"tags"`
	Images               datatypes.JSONSlice[string] `json:"images"`
}

// HasCapacityLimit reports whether MaxParticipants bounds registrations.
func (e *Event) HasCapacityLimit() bool { return e.MaxParticipants > 0 }

type EventRegistration struct {
	Base
	EventID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_event_registration" json:"eventId"`
	Event        *Event     `gorm:"foreignKey:EventID" json:"event,omitempty"`
	StudentID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_event_registration;index" json:"studentId"`
	Student      *User      `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	RegisteredAt time.Time  `json:"registrationDate"`
	PaymentID    *uuid.UUID `gorm:"type:uuid" json:"paymentId,omitempty"`
}

const (
	PositionMember        = "member"
	PositionPresident     = "president"
	PositionVicePresident = "vice_president"
	PositionSecretary     = "secretary"
	PositionTreasurer     = "treasurer"
)

const (
	MembershipActive   = "active"
	MembershipInactive = "inactive"
	MembershipLeft     = "left"
)

type Club struct {
	Base
	Name             string     `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Description      string     `gorm:"type:text" json:"description"`
	Category         string     `gorm:"size:30;not null;index" json:"category"`
	PresidentID      uuid.UUID  `gorm:"type:uuid;not null" json:"presidentId"`
	President        *User      `gorm:"foreignKey:PresidentID" json:"president,omitempty"`
	FacultyAdvisorID *uuid.UUID `gorm:"type:uuid" json:"facultyAdvisorId,omitempty"`
	Logo             *string    `gorm:"size:500" json:"logo,omitempty"`
	MaxMembers       int        `json:"maxMembers"`
	IsActive         bool       `gorm:"not null;index" json:"isActive"`
}

type ClubMembership struct {
	Base
	ClubID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_club_member" json:"clubId"`
	Club     *Club      `gorm:"foreignKey:ClubID" json:"club,omitempty"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_club_member;index" json:"userId"`
	User     *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Position string     `gorm:"size:20;not null" json:"position"`
	Status   string     `gorm:"size:20;not null;index" json:"status"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}
