package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/database"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dashboardCacheKey = "admin:dashboard:stats"
	dashboardCacheTTL = 60 * time.Second
)

type DashboardStats struct {
	TotalStudents    int64 `json:"totalStudents"`
	TotalTeachers    int64 `json:"totalTeachers"`
	TotalSubjects    int64 `json:"totalSubjects"`
	RecentAdmissions int64 `json:"recentAdmissions"`
}

func (h *Handler) DashboardStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var stats DashboardStats
	if h.cache != nil {
		if found, err := h.cache.GetJSON(ctx, dashboardCacheKey, &stats); err == nil && found {
			return ok(c, stats)
		} else if err != nil {
			h.log.WithError(err).Warn("Dashboard cache read failed", nil)
		}
	}

	db := h.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleStudent).Count(&stats.TotalStudents).Error; err != nil {
		return err
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleTeacher).Count(&stats.TotalTeachers).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Subject{}).Count(&stats.TotalSubjects).Error; err != nil {
		return err
	}
	since := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.StudentProfile{}).Where("admission_date >= ?", since).Count(&stats.RecentAdmissions).Error; err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, dashboardCacheKey, stats, dashboardCacheTTL); err != nil {
			h.log.WithError(err).Warn("Dashboard cache write failed", nil)
		}
	}
	return ok(c, stats)
}

func (h *Handler) invalidateDashboard(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, dashboardCacheKey); err != nil {
		h.log.WithError(err).Warn("Dashboard cache invalidation failed", nil)
	}
}

// Students

func (h *Handler) ListStudents(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	q := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Joins("JOIN student_profiles sp ON sp.user_id = users.id").
		Where("users.role = ?", models.RoleStudent)
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		term := like(search)
		q = q.Where("(LOWER(users.profile_first_name) LIKE ? OR LOWER(users.profile_last_name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(sp.student_id) LIKE ?)",
			term, term, term, term)
	}
	if dept := c.Query("department"); dept != "" {
		q = q.Where("sp.department = ?", dept)
	}
	if sem := c.QueryInt("semester"); sem > 0 {
		q = q.Where("sp.current_semester = ?", sem)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var students []models.User
	err := q.Preload("Student").Order("users.created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&students).Error
	if err != nil {
		return err
	}
	return paginated(c, students, p, total)
}

func (h *Handler) findUser(ctx context.Context, id uuid.UUID, role models.Role, msg string) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(ctx).Preload("Student").Preload("Teacher").Preload("Admin").
		Where("id = ? AND role = ?", id, role).First(&user).Error
	if err != nil {
		return nil, apperrors.NotFoundOr(err, msg)
	}
	return &user, nil
}

func (h *Handler) GetStudent(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.findUser(c.UserContext(), id, models.RoleStudent, "Student not found")
	if err != nil {
		return err
	}
	return ok(c, user)
}

func (h *Handler) CreateStudent(c *fiber.Ctx) error {
	var req StudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.createStudent(c.UserContext(), req)
	if err != nil {
		return err
	}
	h.invalidateDashboard(c.UserContext())
	h.sendWelcome(user, req.Password)
	return created(c, "Student created successfully", user)
}

type UpdateStudentRequest struct {
	Profile      *models.Profile      `json:"profile"`
	AcademicInfo *models.AcademicInfo `json:"academicInfo"`
	ParentInfo   *models.ParentInfo   `json:"parentInfo"`
}

func (h *Handler) UpdateStudent(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateStudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	user, err := h.findUser(ctx, id, models.RoleStudent, "Student not found")
	if err != nil {
		return err
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Profile != nil {
			if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(models.User{Profile: *req.Profile}).Error; err != nil {
				return err
			}
		}
		var sp models.StudentProfile
		if req.AcademicInfo != nil {
			sp.AcademicInfo = *req.AcademicInfo
		}
		if req.ParentInfo != nil {
			sp.ParentInfo = *req.ParentInfo
		}
		if req.AcademicInfo != nil || req.ParentInfo != nil {
			return tx.Model(&models.StudentProfile{}).Where("user_id = ?", id).Updates(sp).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	if user, err = h.findUser(ctx, user.ID, models.RoleStudent, "Student not found"); err != nil {
		return err
	}
	return okMessage(c, "Student updated successfully", user)
}

func (h *Handler) DeleteStudent(c *fiber.Ctx) error {
	return h.deleteUser(c, models.RoleStudent, "Student", &models.StudentProfile{})
}

func (h *Handler) deleteUser(c *fiber.Ctx, role models.Role, label string, variant interface{}) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.findUser(ctx, id, role, label+" not found"); err != nil {
		return err
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(variant).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	h.invalidateDashboard(ctx)
	return okMessage(c, label+" deleted successfully", nil)
}

// Teachers

type TeacherRequest struct {
	Email          string         `json:"email" validate:"required,email"`
	Password       string         `json:"password" validate:"required,min=6"`
	Profile        models.Profile `json:"profile"`
	Department     string         `json:"department" validate:"required"`
	Designation    string         `json:"designation"`
	Qualifications []string       `json:"qualifications"`
	Subjects       []string       `json:"subjects"`
	JoiningDate    *time.Time     `json:"joiningDate"`
	Salary         float64        `json:"salary" validate:"gte=0"`
}

func (h *Handler) ListTeachers(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	q := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Joins("JOIN teacher_profiles tp ON tp.user_id = users.id").
		Where("users.role = ?", models.RoleTeacher)
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		term := like(search)
		q = q.Where("(LOWER(users.profile_first_name) LIKE ? OR LOWER(users.profile_last_name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(tp.employee_id) LIKE ?)",
			term, term, term, term)
	}
	if dept := c.Query("department"); dept != "" {
		q = q.Where("tp.department = ?", dept)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var teachers []models.User
	err := q.Preload("Teacher").Order("users.created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&teachers).Error
	if err != nil {
		return err
	}
	return paginated(c, teachers, p, total)
}

func (h *Handler) GetTeacher(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.findUser(c.UserContext(), id, models.RoleTeacher, "Teacher not found")
	if err != nil {
		return err
	}
	return ok(c, user)
}

func (h *Handler) CreateTeacher(c *fiber.Ctx) error {
	var req TeacherRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	email := strings.ToLower(req.Email)
	if err := h.ensureEmailFree(ctx, email); err != nil {
		return err
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), database.PasswordCost)
	if err != nil {
		return apperrors.Internal(err, "Failed to hash password")
	}
	joining := time.Now()
	if req.JoiningDate != nil {
		joining = *req.JoiningDate
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleTeacher,
		Profile:  req.Profile,
		IsActive: true,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		employeeID, err := utils.GenerateUniqueEmployeeID(tx)
		if err != nil {
			return err
		}
		user.Teacher = &models.TeacherProfile{
			EmployeeID:     employeeID,
			Department:     req.Department,
			Designation:    req.Designation,
			Qualifications: req.Qualifications,
			Subjects:       req.Subjects,
			JoiningDate:    joining,
			Salary:         req.Salary,
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return err
	}
	h.invalidateDashboard(ctx)
	h.sendWelcome(user, req.Password)
	return created(c, "Teacher created successfully", user)
}

type UpdateTeacherRequest struct {
	Profile        *models.Profile `json:"profile"`
	Department     *string         `json:"department"`
	Designation    *string         `json:"designation"`
	Qualifications []string        `json:"qualifications"`
	Subjects       []string        `json:"subjects"`
	Salary         *float64        `json:"salary"`
}

func (h *Handler) UpdateTeacher(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTeacherRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.findUser(ctx, id, models.RoleTeacher, "Teacher not found"); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Department != nil {
		updates["department"] = *req.Department
	}
	if req.Designation != nil {
		updates["designation"] = *req.Designation
	}
	if req.Qualifications != nil {
		updates["qualifications"] = datatypes.JSONSlice[string](req.Qualifications)
	}
	if req.Subjects != nil {
		updates["subjects"] = datatypes.JSONSlice[string](req.Subjects)
	}
	if req.Salary != nil {
		updates["salary"] = *req.Salary
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Profile != nil {
			if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(models.User{Profile: *req.Profile}).Error; err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			return tx.Model(&models.TeacherProfile{}).Where("user_id = ?", id).Updates(updates).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	user, err := h.findUser(ctx, id, models.RoleTeacher, "Teacher not found")
	if err != nil {
		return err
	}
	return okMessage(c, "Teacher updated successfully", user)
}

func (h *Handler) DeleteTeacher(c *fiber.Ctx) error {
	return h.deleteUser(c, models.RoleTeacher, "Teacher", &models.TeacherProfile{})
}

func (h *Handler) SetUserStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		IsActive *bool `json:"isActive" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if id == currentUser(c).ID && !*req.IsActive {
		return apperrors.BadRequest("You cannot deactivate your own account")
	}
	res := h.db.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", id).Update("is_active", *req.IsActive)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("User not found")
	}
	return okMessage(c, "User status updated successfully", fiber.Map{"id": id, "isActive": *req.IsActive})
}

// Subjects

type SubjectRequest struct {
	Code        string          `json:"code" validate:"required,max=20"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Credits     int             `json:"credits" validate:"required,gt=0"`
	Department  string          `json:"department" validate:"required"`
	Semester    int             `json:"semester" validate:"required,gt=0"`
	TeacherID   *uuid.UUID      `json:"teacherId"`
	Syllabus    json.RawMessage `json:"syllabus"`
}

func (h *Handler) ListSubjects(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	q := h.db.WithContext(c.UserContext()).Model(&models.Subject{})
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		term := like(search)
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", term, term)
	}
	if dept := c.Query("department"); dept != "" {
		q = q.Where("department = ?", dept)
	}
	if sem := c.QueryInt("semester"); sem > 0 {
		q = q.Where("semester = ?", sem)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var subjects []models.Subject
	if err := q.Preload("Teacher").Order("code").Offset(p.Offset()).Limit(p.Limit).Find(&subjects).Error; err != nil {
		return err
	}
	return paginated(c, subjects, p, total)
}

func (h *Handler) requireTeacher(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND role = ?", *id, models.RoleTeacher).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.BadRequest("Teacher not found")
	}
	return nil
}

func (h *Handler) CreateSubject(c *fiber.Ctx) error {
	var req SubjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.Subject{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.BadRequest("Subject code already exists")
	}
	if err := h.requireTeacher(ctx, req.TeacherID); err != nil {
		return err
	}

	subject := models.Subject{
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		Credits:     req.Credits,
		Department:  req.Department,
		Semester:    req.Semester,
		TeacherID:   req.TeacherID,
		Syllabus:    datatypes.JSON(req.Syllabus),
	}
	if err := h.db.WithContext(ctx).Create(&subject).Error; err != nil {
		return err
	}
	h.invalidateDashboard(ctx)
	return created(c, "Subject created successfully", subject)
}

func (h *Handler) UpdateSubject(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Name        *string         `json:"name"`
		Description *string         `json:"description"`
		Credits     *int            `json:"credits" validate:"omitempty,gt=0"`
		Department  *string         `json:"department"`
		Semester    *int            `json:"semester" validate:"omitempty,gt=0"`
		TeacherID   *uuid.UUID      `json:"teacherId"`
		Syllabus    json.RawMessage `json:"syllabus"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	var subject models.Subject
	if err := h.db.WithContext(ctx).First(&subject, "id = ?", id).Error; err != nil {
		return apperrors.NotFoundOr(err, "Subject not found")
	}
	if err := h.requireTeacher(ctx, req.TeacherID); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Credits != nil {
		updates["credits"] = *req.Credits
	}
	if req.Department != nil {
		updates["department"] = *req.Department
	}
	if req.Semester != nil {
		updates["semester"] = *req.Semester
	}
	if req.TeacherID != nil {
		updates["teacher_id"] = *req.TeacherID
	}
	if len(req.Syllabus) > 0 {
		updates["syllabus"] = datatypes.JSON(req.Syllabus)
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(&subject).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := h.db.WithContext(ctx).Preload("Teacher").First(&subject, "id = ?", id).Error; err != nil {
		return err
	}
	return okMessage(c, "Subject updated successfully", subject)
}

func (h *Handler) DeleteSubject(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).Delete(&models.Subject{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("Subject not found")
	}
	h.invalidateDashboard(c.UserContext())
	return okMessage(c, "Subject deleted successfully", nil)
}

// Fees

type FeeRequest struct {
	StudentID    uuid.UUID       `json:"studentId" validate:"required"`
	AcademicYear string          `json:"academicYear" validate:"required"`
	Semester     int             `json:"semester" validate:"required,gt=0"`
	TotalAmount  float64         `json:"totalAmount" validate:"required,gt=0"`
	DueDate      time.Time       `json:"dueDate" validate:"required"`
	Breakdown    json.RawMessage `json:"feeStructure"`
}

func (h *Handler) ListFees(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	studentID, err := queryUUID(c, "studentId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Fee{})
	if studentID != nil {
		q = q.Where("student_id = ?", *studentID)
	}
	if year := c.Query("academicYear"); year != "" {
		q = q.Where("academic_year = ?", year)
	}
	if sem := c.QueryInt("semester"); sem > 0 {
		q = q.Where("semester = ?", sem)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var fees []models.Fee
	if err := q.Preload("Student.Student").Order("due_date DESC").Offset(p.Offset()).Limit(p.Limit).Find(&fees).Error; err != nil {
		return err
	}
	return paginated(c, fees, p, total)
}

func (h *Handler) CreateFee(c *fiber.Ctx) error {
	var req FeeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.findUser(ctx, req.StudentID, models.RoleStudent, "Student not found"); err != nil {
		return err
	}
	var count int64
	err := h.db.WithContext(ctx).Model(&models.Fee{}).
		Where("student_id = ? AND academic_year = ? AND semester = ?", req.StudentID, req.AcademicYear, req.Semester).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.BadRequest("Fee record already exists for this student and semester")
	}

	fee := models.Fee{
		StudentID:    req.StudentID,
		AcademicYear: req.AcademicYear,
		Semester:     req.Semester,
		Breakdown:    datatypes.JSON(req.Breakdown),
		TotalAmount:  req.TotalAmount,
		DueAmount:    req.TotalAmount,
		DueDate:      req.DueDate,
		Status:       models.FeePending,
	}
	if err := h.db.WithContext(ctx).Create(&fee).Error; err != nil {
		return err
	}
	return created(c, "Fee record created successfully", fee)
}

func (h *Handler) UpdateFee(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		TotalAmount *float64        `json:"totalAmount" validate:"omitempty,gt=0"`
		DueDate     *time.Time      `json:"dueDate"`
		Status      *string         `json:"status" validate:"omitempty,oneof=pending partial paid overdue"`
		Breakdown   json.RawMessage `json:"feeStructure"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	var fee models.Fee
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&fee, "id = ?", id).Error; err != nil {
			return apperrors.NotFoundOr(err, "Fee record not found")
		}
		if req.TotalAmount != nil {
			fee.TotalAmount = *req.TotalAmount
			fee.Status = models.FeePending
			fee.Recompute()
		}
		if req.DueDate != nil {
			fee.DueDate = *req.DueDate
		}
		if req.Status != nil {
			fee.Status = *req.Status
		}
		if len(req.Breakdown) > 0 {
			fee.Breakdown = datatypes.JSON(req.Breakdown)
		}
		return tx.Model(&fee).Select("total_amount", "due_amount", "due_date", "status", "breakdown").Updates(&fee).Error
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Fee record updated successfully", fee)
}

func (h *Handler) DeleteFee(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Fee{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("Fee record not found")
		}
		return tx.Where("fee_id = ?", id).Delete(&models.FeePayment{}).Error
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Fee record deleted successfully", nil)
}

// Exams

type ExamRequest struct {
	Name         string    `json:"name" validate:"required"`
	Type         string    `json:"type" validate:"required,oneof=internal midterm final practical"`
	SubjectID    uuid.UUID `json:"subjectId" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	Duration     int       `json:"duration" validate:"gte=0"`
	MaximumMarks float64   `json:"maximumMarks" validate:"required,gt=0"`
	Venue        string    `json:"venue"`
}

func (h *Handler) ListExams(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	subjectID, err := queryUUID(c, "subjectId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Exam{})
	if subjectID != nil {
		q = q.Where("subject_id = ?", *subjectID)
	}
	if typ := c.Query("type"); typ != "" {
		q = q.Where("type = ?", typ)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var exams []models.Exam
	if err := q.Preload("Subject").Order("date DESC").Offset(p.Offset()).Limit(p.Limit).Find(&exams).Error; err != nil {
		return err
	}
	return paginated(c, exams, p, total)
}

func (h *Handler) CreateExam(c *fiber.Ctx) error {
	var req ExamRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	var subject models.Subject
	if err := h.db.WithContext(ctx).First(&subject, "id = ?", req.SubjectID).Error; err != nil {
		return apperrors.NotFoundOr(err, "Subject not found")
	}
	exam := models.Exam{
		Name:         req.Name,
		Type:         req.Type,
		SubjectID:    req.SubjectID,
		Date:         req.Date,
		Duration:     req.Duration,
		MaximumMarks: req.MaximumMarks,
		Venue:        req.Venue,
		CreatedByID:  currentUser(c).ID,
	}
	if err := h.db.WithContext(ctx).Create(&exam).Error; err != nil {
		return err
	}
	exam.Subject = &subject
	return created(c, "Exam created successfully", exam)
}
