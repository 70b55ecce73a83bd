package middleware

import (
	"errors"

	"github.com/anjiri1684/campus_manager/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const currentUserKey = "currentUser"

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		ErrorHandler:  jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"success": false, "message": "Access denied. No token provided."})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"success": false, "message": "Invalid token."})
}

// LoadUser resolves the token subject to a live, active account.
func LoadUser(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "Invalid token.")
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "Invalid token.")
		}
		idStr, _ := claims["user_id"].(string)
		userID, err := uuid.Parse(idStr)
		if err != nil {
			return deny(c, fiber.StatusUnauthorized, "Invalid token.")
		}

		var user models.User
		err = db.WithContext(c.UserContext()).
			Preload("Student").Preload("Teacher").Preload("Admin").
			First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return deny(c, fiber.StatusUnauthorized, "Invalid token. User not found.")
		}
		if err != nil {
			return err
		}
		if !user.IsActive {
			return deny(c, fiber.StatusForbidden, "Account deactivated.")
		}

		c.Locals(currentUserKey, &user)
		return c.Next()
	}
}

// Authenticated is Protected followed by LoadUser.
func Authenticated(secret string, db *gorm.DB) []fiber.Handler {
	return []fiber.Handler{Protected(secret), LoadUser(db)}
}

// CurrentUser returns the account loaded by LoadUser, or nil on unprotected routes.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(currentUserKey).(*models.User)
	return u
}

func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return deny(c, fiber.StatusUnauthorized, "Access denied. No token provided.")
		}
		for _, r := range roles {
			if user.Role == r {
				return c.Next()
			}
		}
		return deny(c, fiber.StatusForbidden, "Access denied. Insufficient permissions.")
	}
}

func AdminRequired() fiber.Handler {
	return RequireRoles(models.RoleAdmin)
}

func TeacherRequired() fiber.Handler {
	return RequireRoles(models.RoleTeacher)
}

func StudentRequired() fiber.Handler {
	return RequireRoles(models.RoleStudent)
}

func StaffRequired() fiber.Handler {
	return RequireRoles(models.RoleAdmin, models.RoleTeacher)
}

func deny(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}
