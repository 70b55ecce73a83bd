package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/database"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const resetTokenTTL = 15 * time.Minute

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type StudentRequest struct {
	Email        string              `json:"email" validate:"required,email"`
	Password     string              `json:"password" validate:"required,min=6"`
	Profile      models.Profile      `json:"profile"`
	AcademicInfo models.AcademicInfo `json:"academicInfo"`
	ParentInfo   models.ParentInfo   `json:"parentInfo"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var user models.User
	err := h.db.WithContext(c.UserContext()).
		Preload("Student").Preload("Teacher").Preload("Admin").
		Where("email = ?", strings.ToLower(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return apperrors.Unauthorized("Invalid credentials")
	}
	if !user.IsActive {
		return apperrors.Forbidden("Account deactivated")
	}

	now := time.Now()
	if err := h.db.Model(&user).Update("last_login", now).Error; err != nil {
		return err
	}
	user.LastLogin = &now

	token, err := middleware.GenerateToken(h.cfg.JWT.Secret, &user, h.cfg.JWT.Expiry)
	if err != nil {
		return apperrors.Internal(err, "Failed to create token")
	}
	return okMessage(c, "Login successful", fiber.Map{"token": token, "user": user})
}

func (h *Handler) RegisterStudent(c *fiber.Ctx) error {
	var req StudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.createStudent(c.UserContext(), req)
	if err != nil {
		return err
	}
	h.sendWelcome(user, "")
	return created(c, "Student registered successfully", user)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	return ok(c, currentUser(c))
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	const msg = "If an account with that email exists, a password reset link has been sent."

	var user models.User
	if err := h.db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		return okMessage(c, msg, nil)
	}

	token, err := newResetToken()
	if err != nil {
		return apperrors.Internal(err, "Failed to generate reset token")
	}
	hashed := hashToken(token)
	expires := time.Now().Add(resetTokenTTL)
	err = h.db.Model(&user).Updates(map[string]interface{}{
		"reset_password_token":            hashed,
		"reset_password_token_expires_at": expires,
	}).Error
	if err != nil {
		return err
	}

	h.mailer.SendTemplateAsync(user.Email, user.FullName(), notifications.TemplatePasswordReset, map[string]interface{}{
		"ResetURL": h.resetURL(token),
	})
	return okMessage(c, msg, nil)
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	var user models.User
	err := h.db.Where("reset_password_token = ?", hashToken(req.Token)).First(&user).Error
	if err != nil || user.ResetPasswordTokenExpiresAt == nil || user.ResetPasswordTokenExpiresAt.Before(time.Now()) {
		return apperrors.BadRequest("Invalid or expired reset token")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), database.PasswordCost)
	if err != nil {
		return apperrors.Internal(err, "Failed to hash new password")
	}
	err = h.db.Model(&user).Updates(map[string]interface{}{
		"password":                        string(hashedPassword),
		"reset_password_token":            nil,
		"reset_password_token_expires_at": nil,
	}).Error
	if err != nil {
		return err
	}
	return okMessage(c, "Password has been reset successfully.", nil)
}

// createStudent inserts a student account with a freshly allocated studentId.
func (h *Handler) createStudent(ctx context.Context, req StudentRequest) (*models.User, error) {
	email := strings.ToLower(req.Email)
	if err := h.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), database.PasswordCost)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to hash password")
	}
	if req.AcademicInfo.AdmissionDate.IsZero() {
		req.AcademicInfo.AdmissionDate = time.Now()
	}
	if req.AcademicInfo.CurrentSemester == 0 {
		req.AcademicInfo.CurrentSemester = 1
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleStudent,
		Profile:  req.Profile,
		IsActive: true,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		studentID, err := utils.GenerateUniqueStudentID(tx)
		if err != nil {
			return err
		}
		user.Student = &models.StudentProfile{
			StudentID:    studentID,
			AcademicInfo: req.AcademicInfo,
			ParentInfo:   req.ParentInfo,
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (h *Handler) ensureEmailFree(ctx context.Context, email string) error {
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.BadRequest("User already exists")
	}
	return nil
}

func (h *Handler) sendWelcome(user *models.User, password string) {
	h.mailer.SendTemplateAsync(user.Email, user.FullName(), notifications.TemplateWelcome, map[string]interface{}{
		"Role":     string(user.Role),
		"Email":    user.Email,
		"Password": password,
		"LoginURL": strings.TrimRight(h.cfg.App.FrontendURL, "/") + "/login",
	})
}

func (h *Handler) resetURL(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(h.cfg.App.FrontendURL, "/"), token)
}

func newResetToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
