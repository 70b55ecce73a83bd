package handlers

import (
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventRequest struct {
	Title                string     `json:"title" validate:"required,max=200"`
	Description          string     `json:"description"`
	EventType            string     `json:"eventType" validate:"required,oneof=academic cultural sports technical workshop seminar other"`
	StartDate            time.Time  `json:"startDate" validate:"required"`
	EndDate              time.Time  `json:"endDate" validate:"required,gtefield=StartDate"`
	Venue                string     `json:"venue"`
	MaxParticipants      int        `json:"maxParticipants" validate:"gte=0"`
	RegistrationRequired bool       `json:"registrationRequired"`
	RegistrationDeadline *time.Time `json:"registrationDeadline"`
	Fee                  float64    `json:"fee" validate:"gte=0"`
	TargetAudience       []string   `json:"targetAudience"`
	Tags                 []string   `json:"tags"`
	Images               []string   `json:"images"`
}

type ClubRequest struct {
	Name             string     `json:"name" validate:"required,max=150"`
	Description      string     `json:"description"`
	Category         string     `json:"category" validate:"required,oneof=academic cultural sports technical social other"`
	PresidentID      *uuid.UUID `json:"presidentId"`
	FacultyAdvisorID *uuid.UUID `json:"facultyAdvisorId"`
	Logo             *string    `json:"logo"`
	MaxMembers       int        `json:"maxMembers" validate:"gte=0"`
}

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	q := h.db.WithContext(c.UserContext()).Model(&models.Event{})
	if typ := c.Query("type"); typ != "" {
		q = q.Where("type = ?", typ)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		term := like(search)
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", term, term)
	}
	if raw := c.Query("startDate"); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return apperrors.BadRequest("startDate must be formatted as YYYY-MM-DD")
		}
		q = q.Where("start_date >= ?", from)
	}
	if raw := c.Query("endDate"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return apperrors.BadRequest("endDate must be formatted as YYYY-MM-DD")
		}
		q = q.Where("start_date < ?", to.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var events []models.Event
	if err := q.Preload("Organizer").Order("start_date").Offset(p.Offset()).Limit(p.Limit).Find(&events).Error; err != nil {
		return err
	}
	return paginated(c, events, p, total)
}

func (h *Handler) GetEvent(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var event models.Event
	if err := h.db.WithContext(c.UserContext()).Preload("Organizer").First(&event, "id = ?", id).Error; err != nil {
		return apperrors.NotFoundOr(err, "Event not found")
	}
	var registered int64
	err = h.db.WithContext(c.UserContext()).Model(&models.EventRegistration{}).
		Where("event_id = ? AND status <> ?", id, models.RegistrationCancelled).Count(&registered).Error
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"event": event, "registeredCount": registered})
}

func (h *Handler) CreateEvent(c *fiber.Ctx) error {
	var req EventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	event := models.Event{
		Title:                req.Title,
		Description:          req.Description,
		Type:                 req.EventType,
		Status:               models.EventUpcoming,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Venue:                req.Venue,
		OrganizerID:          currentUser(c).ID,
		MaxParticipants:      req.MaxParticipants,
		RegistrationRequired: req.RegistrationRequired,
		RegistrationDeadline: req.RegistrationDeadline,
		Fee:                  req.Fee,
		TargetAudience:       req.TargetAudience,
		Tags:                 req.Tags,
		Images:               req.Images,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&event).Error; err != nil {
		return err
	}
	return created(c, "Event created successfully", event)
}

// ownEvent loads an event the caller may change: its organizer or any admin.
func (h *Handler) ownEvent(c *fiber.Ctx) (*models.Event, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}
	var event models.Event
	if err := h.db.WithContext(c.UserContext()).First(&event, "id = ?", id).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Event not found")
	}
	user := currentUser(c)
	if user.Role != models.RoleAdmin && event.OrganizerID != user.ID {
		return nil, apperrors.Forbidden("Only the organizer can modify this event")
	}
	return &event, nil
}

func (h *Handler) UpdateEvent(c *fiber.Ctx) error {
	event, err := h.ownEvent(c)
	if err != nil {
		return err
	}
	var req struct {
		Title                *string    `json:"title" validate:"omitempty,max=200"`
		Description          *string    `json:"description"`
		Status               *string    `json:"status" validate:"omitempty,oneof=upcoming ongoing completed cancelled"`
		StartDate            *time.Time `json:"startDate"`
		EndDate              *time.Time `json:"endDate"`
		Venue                *string    `json:"venue"`
		MaxParticipants      *int       `json:"maxParticipants" validate:"omitempty,gte=0"`
		RegistrationRequired *bool      `json:"registrationRequired"`
		RegistrationDeadline *time.Time `json:"registrationDeadline"`
		Fee                  *float64   `json:"fee" validate:"omitempty,gte=0"`
		Tags                 []string   `json:"tags"`
		Images               []string   `json:"images"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	set := func(col string, v interface{}) { updates[col] = v }
	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.Status != nil {
		set("status", *req.Status)
	}
	if req.StartDate != nil {
		set("start_date", *req.StartDate)
	}
	if req.EndDate != nil {
		set("end_date", *req.EndDate)
	}
	if req.Venue != nil {
		set("venue", *req.Venue)
	}
	if req.MaxParticipants != nil {
		set("max_participants", *req.MaxParticipants)
	}
	if req.RegistrationRequired != nil {
		set("registration_required", *req.RegistrationRequired)
	}
	if req.RegistrationDeadline != nil {
		set("registration_deadline", *req.RegistrationDeadline)
	}
	if req.Fee != nil {
		set("fee", *req.Fee)
	}
	if req.Tags != nil {
		set("tags", datatypes.JSONSlice[string](req.Tags))
	}
	if req.Images != nil {
		set("images", datatypes.JSONSlice[string](req.Images))
	}

	start, end := event.StartDate, event.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if end.Before(start) {
		return apperrors.BadRequest("endDate must not be before startDate")
	}

	ctx := c.UserContext()
	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(event).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := h.db.WithContext(ctx).First(event, "id = ?", event.ID).Error; err != nil {
		return err
	}
	return okMessage(c, "Event updated successfully", event)
}

func (h *Handler) DeleteEvent(c *fiber.Ctx) error {
	event, err := h.ownEvent(c)
	if err != nil {
		return err
	}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.EventRegistration{}).Error; err != nil {
			return err
		}
		return tx.Delete(event).Error
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Event deleted successfully", nil)
}

func (h *Handler) RegisterForEvent(c *fiber.Ctx) error {
	eventID, err := paramUUID(c, "eventId")
	if err != nil {
		return err
	}
	var req struct {
		StudentID *uuid.UUID `json:"studentId"`
	}
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	user := currentUser(c)
	studentID := user.ID
	if req.StudentID != nil && *req.StudentID != user.ID {
		if user.Role == models.RoleStudent {
			return apperrors.Forbidden("Students can only register themselves")
		}
		studentID = *req.StudentID
	}

	reg, err := h.events.Register(c.UserContext(), eventID, studentID)
	if err != nil {
		return err
	}
	return created(c, "Registered for event successfully", reg)
}

func (h *Handler) CancelRegistration(c *fiber.Ctx) error {
	id, err := paramUUID(c, "registrationId")
	if err != nil {
		return err
	}
	user := currentUser(c)
	reg, err := h.events.CancelRegistration(c.UserContext(), id, user.ID, user.Role)
	if err != nil {
		return err
	}
	return okMessage(c, "Registration cancelled successfully", reg)
}

func (h *Handler) EventRegistrations(c *fiber.Ctx) error {
	eventID, err := paramUUID(c, "eventId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Where("event_id = ?", eventID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var regs []models.EventRegistration
	if err := q.Preload("Student.Student").Order("registered_at").Find(&regs).Error; err != nil {
		return err
	}
	return ok(c, regs)
}

// Clubs

func (h *Handler) ListClubs(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	q := h.db.WithContext(c.UserContext()).Model(&models.Club{})
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		term := like(search)
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", term, term)
	}
	if raw := c.Query("isActive"); raw != "" {
		q = q.Where("is_active = ?", raw == "true")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var clubs []models.Club
	if err := q.Preload("President").Order("name").Offset(p.Offset()).Limit(p.Limit).Find(&clubs).Error; err != nil {
		return err
	}
	return paginated(c, clubs, p, total)
}

func (h *Handler) CreateClub(c *fiber.Ctx) error {
	var req ClubRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	president := currentUser(c).ID
	if req.PresidentID != nil {
		president = *req.PresidentID
	}
	club := models.Club{
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		PresidentID:      president,
		FacultyAdvisorID: req.FacultyAdvisorID,
		Logo:             req.Logo,
		MaxMembers:       req.MaxMembers,
	}
	if err := h.events.CreateClub(c.UserContext(), &club); err != nil {
		return err
	}
	return created(c, "Club created successfully", club)
}

func (h *Handler) JoinClub(c *fiber.Ctx) error {
	clubID, err := paramUUID(c, "clubId")
	if err != nil {
		return err
	}
	membership, err := h.events.JoinClub(c.UserContext(), clubID, currentUser(c).ID)
	if err != nil {
		return err
	}
	return created(c, "Joined club successfully", membership)
}

func (h *Handler) LeaveClub(c *fiber.Ctx) error {
	id, err := paramUUID(c, "membershipId")
	if err != nil {
		return err
	}
	membership, err := h.events.LeaveClub(c.UserContext(), id, currentUser(c).ID)
	if err != nil {
		return err
	}
	return okMessage(c, "Left club successfully", membership)
}

func (h *Handler) ClubMembers(c *fiber.Ctx) error {
	clubID, err := paramUUID(c, "clubId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Where("club_id = ?", clubID)
	if position := c.Query("position"); position != "" {
		q = q.Where("position = ?", position)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var members []models.ClubMembership
	if err := q.Preload("User").Order("joined_at").Find(&members).Error; err != nil {
		return err
	}
	return ok(c, members)
}
