package services

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const EventRegistrationCreated = "event-registration"

type EventService struct {
	db      *gorm.DB
	emitter Emitter
	log     logger.Logger
	now     func() time.Time
}

func NewEventService(db *gorm.DB, emitter Emitter, log logger.Logger) *EventService {
	return &EventService{db: db, emitter: emitterOrNop(emitter), log: log, now: time.Now}
}

// Register signs a student up for an event. The event row is touched first so concurrent
// registrations for the same event serialize on it before the capacity count.
func (s *EventService) Register(ctx context.Context, eventID, studentID uuid.UUID) (*models.EventRegistration, error) {
	now := s.now()
	var reg models.EventRegistration
	var event models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := tx.Model(&models.Event{}).Where("id = ?", eventID).Update("updated_at", now)
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return apperrors.NotFound("Event not found")
		}
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			return err
		}

		switch {
		case !event.RegistrationRequired:
			return apperrors.BadRequest("Registration is not required for this event")
		case event.Status == models.EventCancelled || event.Status == models.EventCompleted:
			return apperrors.BadRequest("Event is not open for registration")
		case event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline):
			return apperrors.BadRequest("Registration deadline has passed")
		}

		var student models.User
		if err := tx.Select("id").Where("id = ? AND role = ?", studentID, models.RoleStudent).First(&student).Error; err != nil {
			return apperrors.NotFoundOr(err, "Student not found")
		}

		existing := models.EventRegistration{}
		err := tx.Where("event_id = ? AND student_id = ?", eventID, studentID).First(&existing).Error
		switch {
		case err == nil && existing.Status != models.RegistrationCancelled:
			return apperrors.BadRequest("Already registered for this event")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if event.HasCapacityLimit() {
			var active int64
			if err := tx.Model(&models.EventRegistration{}).
				Where("event_id = ? AND status <> ?", eventID, models.RegistrationCancelled).
				Count(&active).Error; err != nil {
				return err
			}
			if active >= int64(event.MaxParticipants) {
				return apperrors.BadRequest("Event is full")
			}
		}

		if existing.ID != uuid.Nil {
			existing.Status = models.RegistrationRegistered
			existing.RegisteredAt = now
			reg = existing
			return tx.Model(&existing).Updates(map[string]interface{}{
				"status": models.RegistrationRegistered, "registered_at": now,
			}).Error
		}
		reg = models.EventRegistration{
			EventID:      eventID,
			StudentID:    studentID,
			Status:       models.RegistrationRegistered,
			RegisteredAt: now,
		}
		return tx.Create(&reg).Error
	})
	if err != nil {
		return nil, err
	}
	s.emitter.SendToUser(event.OrganizerID, EventRegistrationCreated, map[string]interface{}{
		"eventId": eventID, "studentId": studentID, "registrationId": reg.ID,
	})
	return &reg, nil
}

// CancelRegistration cancels a registration. Students may only cancel their own.
func (s *EventService) CancelRegistration(ctx context.Context, registrationID, userID uuid.UUID, role models.Role) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	if err := s.db.WithContext(ctx).First(&reg, "id = ?", registrationID).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Registration not found")
	}
	if role == models.RoleStudent && reg.StudentID != userID {
		return nil, apperrors.NotFound("Registration not found")
	}
	if reg.Status == models.RegistrationCancelled {
		return nil, apperrors.BadRequest("Registration is already cancelled")
	}
	if err := s.db.WithContext(ctx).Model(&reg).Update("status", models.RegistrationCancelled).Error; err != nil {
		return nil, err
	}
	reg.Status = models.RegistrationCancelled
	return &reg, nil
}

// CreateClub stores the club and makes its president the first member.
func (s *EventService) CreateClub(ctx context.Context, club *models.Club) error {
	club.IsActive = true
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", club.PresidentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.NotFound("President not found")
		}
		if err := tx.Create(club).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.BadRequest("A club with this name already exists")
			}
			return err
		}
		return tx.Create(&models.ClubMembership{
			ClubID:   club.ID,
			UserID:   club.PresidentID,
			Position: models.PositionPresident,
			Status:   models.MembershipActive,
			JoinedAt: s.now(),
		}).Error
	})
}

// JoinClub adds the user as a member, reactivating an earlier membership if there is one.
func (s *EventService) JoinClub(ctx context.Context, clubID, userID uuid.UUID) (*models.ClubMembership, error) {
	now := s.now()
	var membership models.ClubMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := tx.Model(&models.Club{}).Where("id = ?", clubID).Update("updated_at", now)
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return apperrors.NotFound("Club not found")
		}
		var club models.Club
		if err := tx.First(&club, "id = ?", clubID).Error; err != nil {
			return err
		}
		if !club.IsActive {
			return apperrors.BadRequest("Club is not active")
		}

		err := tx.Where("club_id = ? AND user_id = ?", clubID, userID).First(&membership).Error
		switch {
		case err == nil && membership.Status == models.MembershipActive:
			return apperrors.BadRequest("Already a member of this club")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if club.MaxMembers > 0 {
			var active int64
			if err := tx.Model(&models.ClubMembership{}).
				Where("club_id = ? AND status = ?", clubID, models.MembershipActive).
				Count(&active).Error; err != nil {
				return err
			}
			if active >= int64(club.MaxMembers) {
				return apperrors.BadRequest("Club has reached its member limit")
			}
		}

		if membership.ID != uuid.Nil {
			membership.Status = models.MembershipActive
			membership.Position = models.PositionMember
			membership.JoinedAt = now
			membership.LeftAt = nil
			return tx.Model(&membership).Updates(map[string]interface{}{
				"status": models.MembershipActive, "position": models.PositionMember, "joined_at": now, "left_at": nil,
			}).Error
		}
		membership = models.ClubMembership{
			ClubID:   clubID,
			UserID:   userID,
			Position: models.PositionMember,
			Status:   models.MembershipActive,
			JoinedAt: now,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// LeaveClub ends the caller's own membership.
func (s *EventService) LeaveClub(ctx context.Context, membershipID, userID uuid.UUID) (*models.ClubMembership, error) {
	var membership models.ClubMembership
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", membershipID, userID).First(&membership).Error
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "Membership not found")
	}
	if membership.Status != models.MembershipActive {
		return nil, apperrors.BadRequest("Membership is not active")
	}
	now := s.now()
	membership.Status = models.MembershipLeft
	membership.LeftAt = &now
	if err := s.db.WithContext(ctx).Model(&membership).Updates(map[string]interface{}{
		"status": models.MembershipLeft, "left_at": now,
	}).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}
