package handlers

import (
	"errors"
	"strings"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorHandler is the fiber.Config ErrorHandler. Unexpected errors are logged and
// answered with a generic 500.
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			appErr *apperrors.AppError
			fErr   *fiber.Error
			vErrs  validator.ValidationErrors
		)
		switch {
		case errors.As(err, &vErrs):
			out := make([]fieldError, 0, len(vErrs))
			for _, fe := range vErrs {
				out = append(out, fieldError{Field: lowerFirst(fe.Field()), Message: validationMessage(fe)})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false, "message": "Validation failed", "errors": out,
			})
		case errors.As(err, &appErr):
			if appErr.Status >= fiber.StatusInternalServerError {
				log.WithError(err).Error("Request failed", requestFields(c))
			}
			return reply(c, appErr.Status, appErr.Message)
		case errors.As(err, &fErr):
			return reply(c, fErr.Code, fErr.Message)
		case isInvalidUUID(err):
			return reply(c, fiber.StatusBadRequest, "Invalid identifier")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return reply(c, fiber.StatusNotFound, "Resource not found")
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return reply(c, fiber.StatusBadRequest, "Duplicate value")
		}

		log.WithError(err).Error("Unhandled error", requestFields(c))
		return reply(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

// isInvalidUUID reports whether err came from parsing a malformed uuid anywhere in its chain.
func isInvalidUUID(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if uuid.IsInvalidLengthError(err) || strings.HasPrefix(err.Error(), "invalid UUID") {
			return true
		}
	}
	return false
}

func reply(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

func requestFields(c *fiber.Ctx) map[string]interface{} {
	return map[string]interface{}{"method": c.Method(), "path": c.Path()}
}

func validationMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	}
	return field + " is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
