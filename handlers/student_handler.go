package handlers

import (
	"errors"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttendanceSummary struct {
	TotalClasses         int     `json:"totalClasses"`
	PresentClasses       int     `json:"presentClasses"`
	AbsentClasses        int     `json:"absentClasses"`
	LeaveClasses         int     `json:"leaveClasses"`
	AttendancePercentage float64 `json:"attendancePercentage"`
}

type Performance struct {
	TotalSubjects     int     `json:"totalSubjects"`
	OverallPercentage float64 `json:"overallPercentage"`
	CGPA              float64 `json:"cgpa"`
}

// AssignmentView is an assignment together with the caller's own submission, if any.
type AssignmentView struct {
	models.Assignment
	Submission *models.Submission `json:"submission,omitempty"`
}

func (h *Handler) StudentProfile(c *fiber.Ctx) error {
	return ok(c, currentUser(c))
}

func summarizeAttendance(records []models.Attendance) AttendanceSummary {
	s := AttendanceSummary{TotalClasses: len(records)}
	for _, r := range records {
		switch r.Status {
		case models.AttendancePresent:
			s.PresentClasses++
		case models.AttendanceAbsent:
			s.AbsentClasses++
		case models.AttendanceLeave:
			s.LeaveClasses++
		}
	}
	s.AttendancePercentage = utils.Percent(float64(s.PresentClasses), float64(s.TotalClasses))
	return s
}

func (h *Handler) StudentAttendance(c *fiber.Ctx) error {
	subjectID, err := queryUUID(c, "subjectId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Where("student_id = ?", currentUser(c).ID)
	if subjectID != nil {
		q = q.Where("subject_id = ?", *subjectID)
	}
	if month, year := c.QueryInt("month"), c.QueryInt("year"); month > 0 && year > 0 {
		from, to := monthRange(year, month)
		q = q.Where("date >= ? AND date < ?", from, to)
	}
	var records []models.Attendance
	if err := q.Preload("Subject").Order("date DESC").Find(&records).Error; err != nil {
		return err
	}
	return ok(c, fiber.Map{"attendance": records, "summary": summarizeAttendance(records)})
}

func computePerformance(grades []models.Grade) Performance {
	var (
		obtained, maximum float64
		entries           = make([]utils.CreditGrade, 0, len(grades))
		subjects          = map[uuid.UUID]struct{}{}
	)
	for _, g := range grades {
		obtained += g.MarksObtained
		maximum += g.MaximumMarks
		subjects[g.SubjectID] = struct{}{}
		credits := 0
		if g.Subject != nil {
			credits = g.Subject.Credits
		}
		entries = append(entries, utils.CreditGrade{Credits: credits, Letter: g.Grade})
	}
	return Performance{
		TotalSubjects:     len(subjects),
		OverallPercentage: utils.Percent(obtained, maximum),
		CGPA:              utils.CGPA(entries),
	}
}

func (h *Handler) StudentGrades(c *fiber.Ctx) error {
	var grades []models.Grade
	err := h.db.WithContext(c.UserContext()).Where("student_id = ?", currentUser(c).ID).
		Preload("Exam").Preload("Subject").Order("created_at DESC").Find(&grades).Error
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"grades": grades, "performance": computePerformance(grades)})
}

func studentProfileOf(u *models.User) (*models.StudentProfile, error) {
	if u.Student == nil {
		return nil, apperrors.NotFound("Student profile not found")
	}
	return u.Student, nil
}

func (h *Handler) StudentAssignments(c *fiber.Ctx) error {
	user := currentUser(c)
	profile, err := studentProfileOf(user)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	var assignments []models.Assignment
	err = h.db.WithContext(ctx).
		Joins("JOIN subjects ON subjects.id = assignments.subject_id").
		Where("subjects.department = ? AND subjects.semester = ?",
			profile.AcademicInfo.Department, profile.AcademicInfo.CurrentSemester).
		Preload("Subject").Order("assignments.due_date").Find(&assignments).Error
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	own := map[uuid.UUID]*models.Submission{}
	if len(ids) > 0 {
		var submissions []models.Submission
		if err := h.db.WithContext(ctx).Where("student_id = ? AND assignment_id IN ?", user.ID, ids).Find(&submissions).Error; err != nil {
			return err
		}
		for i := range submissions {
			own[submissions[i].AssignmentID] = &submissions[i]
		}
	}

	status := c.Query("status")
	now := time.Now()
	out := make([]AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		sub := own[a.ID]
		switch status {
		case "submitted":
			if sub == nil {
				continue
			}
		case "pending":
			if sub != nil || a.DueDate.Before(now) {
				continue
			}
		case "overdue":
			if sub != nil || !a.DueDate.Before(now) {
				continue
			}
		}
		out = append(out, AssignmentView{Assignment: a, Submission: sub})
	}
	return ok(c, out)
}

func (h *Handler) SubmitAssignment(c *fiber.Ctx) error {
	assignmentID, err := paramUUID(c, "assignmentId")
	if err != nil {
		return err
	}
	var req struct {
		FileURL string `json:"fileUrl" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	user := currentUser(c)

	var assignment models.Assignment
	if err := h.db.WithContext(ctx).First(&assignment, "id = ?", assignmentID).Error; err != nil {
		return apperrors.NotFoundOr(err, "Assignment not found")
	}

	var count int64
	err = h.db.WithContext(ctx).Model(&models.Submission{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, user.ID).Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.BadRequest("Assignment already submitted")
	}

	now := time.Now()
	status := models.SubmissionSubmitted
	if now.After(assignment.DueDate) {
		status = models.SubmissionLate
	}
	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    user.ID,
		FileURL:      req.FileURL,
		SubmittedAt:  now,
		Status:       status,
	}
	if err := h.db.WithContext(ctx).Create(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.BadRequest("Assignment already submitted")
		}
		return err
	}
	return created(c, "Assignment submitted successfully", submission)
}

func (h *Handler) StudentFees(c *fiber.Ctx) error {
	var fees []models.Fee
	err := h.db.WithContext(c.UserContext()).Where("student_id = ?", currentUser(c).ID).
		Preload("Payments").Order("due_date DESC").Find(&fees).Error
	if err != nil {
		return err
	}
	return ok(c, fees)
}
