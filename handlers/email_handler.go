package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SendEmailRequest struct {
	To           string                 `json:"to" validate:"required,email"`
	Subject      string                 `json:"subject"`
	HTML         string                 `json:"html"`
	Text         string                 `json:"text"`
	Template     string                 `json:"template"`
	TemplateData map[string]interface{} `json:"templateData"`
}

type bulkResult struct {
	To        string `json:"to"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) requireTemplate(name string) error {
	if !h.mailer.Templates().Has(name) {
		return apperrors.BadRequest("Unknown email template: " + name)
	}
	return nil
}

func (h *Handler) SendEmail(c *fiber.Ctx) error {
	var req SendEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	var (
		id  string
		err error
	)
	if req.Template != "" {
		if err := h.requireTemplate(req.Template); err != nil {
			return err
		}
		id, err = h.mailer.SendTemplate(ctx, req.To, "", req.Template, req.TemplateData)
	} else {
		if req.Subject == "" || (req.HTML == "" && req.Text == "") {
			return apperrors.BadRequest("subject and html or text are required without a template")
		}
		id, err = h.mailer.Send(ctx, notifications.Message{To: req.To, Subject: req.Subject, HTML: req.HTML, Text: req.Text}, "custom")
	}
	if err != nil {
		return apperrors.Internal(err, "Failed to send email")
	}
	return okMessage(c, "Email sent successfully", fiber.Map{"messageId": id})
}

func (h *Handler) SendBulkEmail(c *fiber.Ctx) error {
	var req struct {
		Recipients   []string               `json:"recipients" validate:"required,min=1,dive,email"`
		Subject      string                 `json:"subject"`
		Template     string                 `json:"template" validate:"required"`
		TemplateData map[string]interface{} `json:"templateData"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.requireTemplate(req.Template); err != nil {
		return err
	}

	results := make([]bulkResult, 0, len(req.Recipients))
	var sent, failed int
	for _, to := range req.Recipients {
		data := copyData(req.TemplateData)
		id, err := h.mailer.SendTemplate(c.UserContext(), to, "", req.Template, data)
		if err != nil {
			failed++
			results = append(results, bulkResult{To: to, Error: err.Error()})
			continue
		}
		sent++
		results = append(results, bulkResult{To: to, Success: true, MessageID: id})
	}
	return okMessage(c, "Bulk email processed", fiber.Map{
		"totalSent": sent, "totalFailed": failed, "results": results,
	})
}

func copyData(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src)+2)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (h *Handler) userByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "User not found")
	}
	return &user, nil
}

func (h *Handler) SendWelcomeEmail(c *fiber.Ctx) error {
	var req struct {
		UserID   uuid.UUID `json:"userId" validate:"required"`
		Password string    `json:"password"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.userByID(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}
	id, err := h.mailer.SendTemplate(c.UserContext(), user.Email, user.FullName(), notifications.TemplateWelcome, map[string]interface{}{
		"Role":     string(user.Role),
		"Email":    user.Email,
		"Password": req.Password,
		"LoginURL": strings.TrimRight(h.cfg.App.FrontendURL, "/") + "/login",
	})
	if err != nil {
		return apperrors.Internal(err, "Failed to send welcome email")
	}
	return okMessage(c, "Welcome email sent successfully", fiber.Map{"messageId": id})
}

func (h *Handler) SendEventInvitation(c *fiber.Ctx) error {
	var req struct {
		RecipientIDs []uuid.UUID           `json:"recipientIds" validate:"required,min=1"`
		EventDetails map[string]interface{} `json:"eventDetails" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	var users []models.User
	if err := h.db.WithContext(c.UserContext()).Where("id IN ?", req.RecipientIDs).Find(&users).Error; err != nil {
		return err
	}
	data := templateKeys(req.EventDetails)
	for _, u := range users {
		h.mailer.SendTemplateAsync(u.Email, u.FullName(), notifications.TemplateEventInvitation, copyData(data))
	}
	return okMessage(c, "Event invitations queued", fiber.Map{"queued": len(users)})
}

// templateKeys maps camelCase request keys onto the exported names the templates use.
func templateKeys(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if k == "" {
			continue
		}
		out[strings.ToUpper(k[:1])+k[1:]] = v
	}
	return out
}

func (h *Handler) EmailStats(c *fiber.Ctx) error {
	stats, err := h.mailer.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, stats)
}

func (h *Handler) SendTestEmail(c *fiber.Ctx) error {
	var req struct {
		To string `json:"to" validate:"required,email"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.mailer.SendTemplate(c.UserContext(), req.To, "", notifications.TemplateTest, map[string]interface{}{
		"Time": time.Now().Format(time.RFC1123),
	})
	if err != nil {
		return apperrors.Internal(err, "Failed to send test email")
	}
	return okMessage(c, "Test email sent successfully", fiber.Map{"messageId": id})
}

func (h *Handler) EmailLogs(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	q := h.db.WithContext(c.UserContext()).Model(&models.EmailLog{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if template := c.Query("template"); template != "" {
		q = q.Where("template = ?", template)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var logs []models.EmailLog
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&logs).Error; err != nil {
		return err
	}
	return paginated(c, logs, p, total)
}

// studentEmail sends template to a student with the caller-supplied details merged in.
func (h *Handler) studentEmail(c *fiber.Ctx, template, detailsKey string) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	rawID, _ := req["studentId"].(string)
	studentID, err := uuid.Parse(rawID)
	if err != nil {
		return apperrors.BadRequest("studentId is required")
	}
	details, ok := req[detailsKey].(map[string]interface{})
	if !ok {
		return apperrors.BadRequest(detailsKey + " is required")
	}
	student, err := h.findUser(c.UserContext(), studentID, models.RoleStudent, "Student not found")
	if err != nil {
		return err
	}
	id, err := h.mailer.SendTemplate(c.UserContext(), student.Email, student.FullName(), template, templateKeys(details))
	if err != nil {
		return apperrors.Internal(err, "Failed to send email")
	}
	return okMessage(c, "Email sent successfully", fiber.Map{"messageId": id})
}

func (h *Handler) SendFeeReminder(c *fiber.Ctx) error {
	return h.studentEmail(c, notifications.TemplateFeeReminder, "feeDetails")
}

func (h *Handler) SendExamNotification(c *fiber.Ctx) error {
	return h.studentEmail(c, notifications.TemplateExamNotification, "examDetails")
}

func (h *Handler) SendAttendanceNotification(c *fiber.Ctx) error {
	return h.studentEmail(c, notifications.TemplateAttendanceNotification, "attendanceDetails")
}

// SendPasswordResetEmail mails a reset link for a token issued elsewhere.
func (h *Handler) SendPasswordResetEmail(c *fiber.Ctx) error {
	var req struct {
		Email      string `json:"email" validate:"required,email"`
		ResetToken string `json:"resetToken" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	var user models.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		return apperrors.NotFoundOr(err, "User not found")
	}
	id, err := h.mailer.SendTemplate(c.UserContext(), user.Email, user.FullName(), notifications.TemplatePasswordReset, map[string]interface{}{
		"ResetURL": h.resetURL(req.ResetToken),
	})
	if err != nil {
		return apperrors.Internal(err, "Failed to send password reset email")
	}
	return okMessage(c, "Password reset email sent successfully", fiber.Map{"messageId": id})
}
