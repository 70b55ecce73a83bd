package handlers

import (
	"context"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

type AttendanceRequest struct {
	StudentID uuid.UUID `json:"studentId" validate:"required"`
	SubjectID uuid.UUID `json:"subjectId" validate:"required"`
	Date      string    `json:"date" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=present absent leave"`
	Remarks   string    `json:"remarks"`
}

type GradeRequest struct {
	StudentID     uuid.UUID `json:"studentId" validate:"required"`
	ExamID        uuid.UUID `json:"examId" validate:"required"`
	SubjectID     uuid.UUID `json:"subjectId" validate:"required"`
	MarksObtained float64   `json:"marksObtained" validate:"gte=0"`
	MaximumMarks  float64   `json:"maximumMarks" validate:"required,gt=0"`
	Remarks       string    `json:"remarks"`
}

type AssignmentRequest struct {
	Title        string    `json:"title" validate:"required"`
	Description  string    `json:"description"`
	SubjectID    uuid.UUID `json:"subjectId" validate:"required"`
	DueDate      time.Time `json:"dueDate" validate:"required"`
	MaximumMarks float64   `json:"maximumMarks" validate:"required,gt=0"`
	Attachments  []string  `json:"attachments"`
}

func (h *Handler) TeacherSubjects(c *fiber.Ctx) error {
	var subjects []models.Subject
	err := h.db.WithContext(c.UserContext()).
		Where("teacher_id = ?", currentUser(c).ID).Order("code").Find(&subjects).Error
	if err != nil {
		return err
	}
	return ok(c, subjects)
}

// ownSubject loads a subject and checks that the caller teaches it.
func (h *Handler) ownSubject(ctx context.Context, subjectID, teacherID uuid.UUID) (*models.Subject, error) {
	var subject models.Subject
	if err := h.db.WithContext(ctx).First(&subject, "id = ?", subjectID).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Subject not found")
	}
	if subject.TeacherID == nil || *subject.TeacherID != teacherID {
		return nil, apperrors.Forbidden("You are not assigned to this subject")
	}
	return &subject, nil
}

func (h *Handler) SubjectStudents(c *fiber.Ctx) error {
	subjectID, err := paramUUID(c, "subjectId")
	if err != nil {
		return err
	}
	subject, err := h.ownSubject(c.UserContext(), subjectID, currentUser(c).ID)
	if err != nil {
		return err
	}
	students, err := h.studentsOf(c.UserContext(), subject.Department, subject.Semester)
	if err != nil {
		return err
	}
	return ok(c, students)
}

func (h *Handler) studentsOf(ctx context.Context, department string, semester int) ([]models.User, error) {
	var students []models.User
	err := h.db.WithContext(ctx).
		Joins("JOIN student_profiles sp ON sp.user_id = users.id").
		Where("users.role = ? AND users.is_active = ? AND sp.department = ? AND sp.current_semester = ?",
			models.RoleStudent, true, department, semester).
		Preload("Student").
		Order("sp.student_id").
		Find(&students).Error
	return students, err
}

func (h *Handler) MarkAttendance(c *fiber.Ctx) error {
	var req AttendanceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return apperrors.BadRequest("date must be formatted as YYYY-MM-DD")
	}
	ctx := c.UserContext()
	teacher := currentUser(c)
	if _, err := h.ownSubject(ctx, req.SubjectID, teacher.ID); err != nil {
		return err
	}
	if _, err := h.findUser(ctx, req.StudentID, models.RoleStudent, "Student not found"); err != nil {
		return err
	}

	record := models.Attendance{
		StudentID:  req.StudentID,
		SubjectID:  req.SubjectID,
		Date:       day,
		Status:     req.Status,
		MarkedByID: teacher.ID,
		Remarks:    req.Remarks,
	}
	err = h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "marked_by_id", "remarks", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).
		First(&record, "student_id = ? AND subject_id = ? AND date = ?", req.StudentID, req.SubjectID, day).Error; err != nil {
		return err
	}
	return okMessage(c, "Attendance marked successfully", record)
}

func (h *Handler) SubjectAttendance(c *fiber.Ctx) error {
	subjectID, err := paramUUID(c, "subjectId")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.ownSubject(ctx, subjectID, currentUser(c).ID); err != nil {
		return err
	}

	q := h.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return apperrors.BadRequest("date must be formatted as YYYY-MM-DD")
		}
		q = q.Where("date = ?", day)
	} else if month, year := c.QueryInt("month"), c.QueryInt("year"); month > 0 && year > 0 {
		from, to := monthRange(year, month)
		q = q.Where("date >= ? AND date < ?", from, to)
	}

	var records []models.Attendance
	if err := q.Preload("Student.Student").Order("date DESC").Find(&records).Error; err != nil {
		return err
	}
	return ok(c, records)
}

func monthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func (h *Handler) TeacherGrades(c *fiber.Ctx) error {
	subjectID, err := queryUUID(c, "subjectId")
	if err != nil {
		return err
	}
	studentID, err := queryUUID(c, "studentId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Grade{}).Where("graded_by_id = ?", currentUser(c).ID)
	if subjectID != nil {
		q = q.Where("subject_id = ?", *subjectID)
	}
	if studentID != nil {
		q = q.Where("student_id = ?", *studentID)
	}
	var grades []models.Grade
	if err := q.Preload("Student.Student").Preload("Exam").Preload("Subject").Order("created_at DESC").Find(&grades).Error; err != nil {
		return err
	}
	return ok(c, grades)
}

func (h *Handler) RecordGrade(c *fiber.Ctx) error {
	var req GradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.MarksObtained > req.MaximumMarks {
		return apperrors.BadRequest("Marks obtained cannot exceed maximum marks")
	}
	ctx := c.UserContext()
	teacher := currentUser(c)
	if _, err := h.ownSubject(ctx, req.SubjectID, teacher.ID); err != nil {
		return err
	}
	var exam models.Exam
	if err := h.db.WithContext(ctx).First(&exam, "id = ?", req.ExamID).Error; err != nil {
		return apperrors.NotFoundOr(err, "Exam not found")
	}
	if exam.SubjectID != req.SubjectID {
		return apperrors.BadRequest("Exam does not belong to this subject")
	}
	if _, err := h.findUser(ctx, req.StudentID, models.RoleStudent, "Student not found"); err != nil {
		return err
	}

	grade := models.Grade{
		StudentID:     req.StudentID,
		ExamID:        req.ExamID,
		SubjectID:     req.SubjectID,
		MarksObtained: req.MarksObtained,
		MaximumMarks:  req.MaximumMarks,
		Grade:         utils.GradeOf(req.MarksObtained, req.MaximumMarks),
		Remarks:       req.Remarks,
		GradedByID:    teacher.ID,
	}
	err := h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "exam_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subject_id", "marks_obtained", "maximum_marks", "grade", "remarks", "graded_by_id", "updated_at",
		}),
	}).Create(&grade).Error
	if err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).First(&grade, "student_id = ? AND exam_id = ?", req.StudentID, req.ExamID).Error; err != nil {
		return err
	}
	return okMessage(c, "Grade recorded successfully", grade)
}

func (h *Handler) TeacherAssignments(c *fiber.Ctx) error {
	q := h.db.WithContext(c.UserContext()).Where("teacher_id = ?", currentUser(c).ID)
	switch c.Query("status") {
	case "active":
		q = q.Where("due_date >= ?", time.Now())
	case "closed":
		q = q.Where("due_date < ?", time.Now())
	}
	var assignments []models.Assignment
	if err := q.Preload("Subject").Order("due_date DESC").Find(&assignments).Error; err != nil {
		return err
	}
	return ok(c, assignments)
}

func (h *Handler) CreateAssignment(c *fiber.Ctx) error {
	var req AssignmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	teacher := currentUser(c)
	subject, err := h.ownSubject(ctx, req.SubjectID, teacher.ID)
	if err != nil {
		return err
	}
	assignment := models.Assignment{
		Title:        req.Title,
		Description:  req.Description,
		SubjectID:    req.SubjectID,
		TeacherID:    teacher.ID,
		DueDate:      req.DueDate,
		MaximumMarks: req.MaximumMarks,
		Attachments:  req.Attachments,
	}
	if err := h.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		return err
	}
	assignment.Subject = subject
	return created(c, "Assignment created successfully", assignment)
}

func (h *Handler) ownAssignment(ctx context.Context, id, teacherID uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := h.db.WithContext(ctx).First(&assignment, "id = ? AND teacher_id = ?", id, teacherID).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Assignment not found")
	}
	return &assignment, nil
}

func (h *Handler) AssignmentSubmissions(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.ownAssignment(ctx, id, currentUser(c).ID); err != nil {
		return err
	}
	var submissions []models.Submission
	err = h.db.WithContext(ctx).Where("assignment_id = ?", id).
		Preload("Student.Student").Order("submitted_at").Find(&submissions).Error
	if err != nil {
		return err
	}
	return ok(c, submissions)
}

func (h *Handler) GradeSubmission(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	submissionID, err := paramUUID(c, "submissionId")
	if err != nil {
		return err
	}
	var req struct {
		Marks    float64 `json:"marks" validate:"gte=0"`
		Feedback string  `json:"feedback"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	assignment, err := h.ownAssignment(ctx, id, currentUser(c).ID)
	if err != nil {
		return err
	}
	if req.Marks > assignment.MaximumMarks {
		return apperrors.BadRequest("Marks cannot exceed maximum marks")
	}

	var submission models.Submission
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&submission, "id = ? AND assignment_id = ?", submissionID, id).Error; err != nil {
			return apperrors.NotFoundOr(err, "Submission not found")
		}
		submission.Marks = &req.Marks
		submission.Feedback = &req.Feedback
		submission.Status = models.SubmissionGraded
		return tx.Model(&submission).Select("marks", "feedback", "status").Updates(&submission).Error
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Submission graded successfully", submission)
}
