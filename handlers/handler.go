// Package handlers exposes the HTTP and websocket API. One Handler is built at startup
// with every collaborator injected; routes bind its methods.
package handlers

import (
	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/database"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/anjiri1684/campus_manager/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = validator.New()

type Deps struct {
	DB            *gorm.DB
	Config        *config.Config
	Logger        logger.Logger
	Cache         *database.RedisClient
	Hub           *websocket.Hub
	Mailer        *notifications.Mailer
	Uploader      storage.Uploader
	Payments      *services.PaymentService
	Receipts      *services.ReceiptService
	Notifications *services.NotificationService
	Chat          *services.ChatService
	Events        *services.EventService
}

type Handler struct {
	db            *gorm.DB
	cfg           *config.Config
	log           logger.Logger
	cache         *database.RedisClient
	hub           *websocket.Hub
	mailer        *notifications.Mailer
	uploader      storage.Uploader
	payments      *services.PaymentService
	receipts      *services.ReceiptService
	notifications *services.NotificationService
	chat          *services.ChatService
	events        *services.EventService
}

func New(d Deps) *Handler {
	return &Handler{
		db:            d.DB,
		cfg:           d.Config,
		log:           d.Logger,
		cache:         d.Cache,
		hub:           d.Hub,
		mailer:        d.Mailer,
		uploader:      d.Uploader,
		payments:      d.Payments,
		receipts:      d.Receipts,
		notifications: d.Notifications,
		chat:          d.Chat,
		events:        d.Events,
	}
}

// Authenticated returns the token check followed by the active-user load.
func (h *Handler) Authenticated() []fiber.Handler {
	return middleware.Authenticated(h.cfg.JWT.Secret, h.db)
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func okMessage(c *fiber.Ctx, message string, data interface{}) error {
	body := fiber.Map{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(body)
}

func created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": message, "data": data})
}

func paginated(c *fiber.Ctx, data interface{}, p utils.Pagination, total int64) error {
	return c.JSON(fiber.Map{"success": true, "data": data, "pagination": p.Meta(total)})
}

// bind parses the JSON body into dst and runs struct validation.
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	return validate.Struct(dst)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("Invalid identifier")
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.BadRequest("Invalid identifier")
	}
	return &id, nil
}

func currentUser(c *fiber.Ctx) *models.User {
	return middleware.CurrentUser(c)
}

func like(term string) string {
	return "%" + term + "%"
}

