package handlers

import (
	"errors"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/gofiber/fiber/v2"
)

type UpdateProfileRequest struct {
	FirstName   *string    `json:"firstName" validate:"omitempty,max=100"`
	LastName    *string    `json:"lastName" validate:"omitempty,max=100"`
	Phone       *string    `json:"phone" validate:"omitempty,max=30"`
	Address     *string    `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      *string    `json:"gender" validate:"omitempty,oneof=male female other"`
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user := currentUser(c)

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["profile_first_name"] = *req.FirstName
		user.Profile.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		updates["profile_last_name"] = *req.LastName
		user.Profile.LastName = *req.LastName
	}
	if req.Phone != nil {
		updates["profile_phone"] = *req.Phone
		user.Profile.Phone = *req.Phone
	}
	if req.Address != nil {
		updates["profile_address"] = *req.Address
		user.Profile.Address = *req.Address
	}
	if req.DateOfBirth != nil {
		updates["profile_date_of_birth"] = *req.DateOfBirth
		user.Profile.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		updates["profile_gender"] = *req.Gender
		user.Profile.Gender = *req.Gender
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}
	}
	return okMessage(c, "Profile updated successfully", user)
}

func (h *Handler) UploadAvatar(c *fiber.Ctx) error {
	fh, err := c.FormFile("avatar")
	if err != nil {
		return apperrors.BadRequest("No file uploaded")
	}
	file, err := h.store(c, fh, storage.KindImage, "avatars")
	if err != nil {
		return err
	}

	user := currentUser(c)
	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", user.ID).
		Update("profile_avatar", file.URL).Error; err != nil {
		return err
	}
	user.Profile.Avatar = &file.URL
	return okMessage(c, "Avatar uploaded successfully", fiber.Map{"avatar": file.URL, "user": user})
}

func (h *Handler) Departments(c *fiber.Ctx) error {
	var departments []string
	err := h.db.WithContext(c.UserContext()).Model(&models.Subject{}).
		Distinct("department").Order("department").Pluck("department", &departments).Error
	if err != nil {
		return err
	}
	return ok(c, departments)
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrFileTooLarge):
		return apperrors.BadRequest("File size exceeds the allowed limit")
	case errors.Is(err, storage.ErrFileTypeRejected):
		return apperrors.BadRequest("Invalid file type")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("File not found")
	case errors.Is(err, storage.ErrUnsupported):
		return apperrors.BadRequest("Operation not supported by the configured storage")
	}
	return apperrors.Internal(err, "File storage failed")
}
