package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Welcome to the " + h.cfg.App.Name + " API",
		"version": "1.0.0",
	})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.WithError(err).Error("Database health check failed", nil)
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "up"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.log.WithError(err).Error("Redis health check failed", nil)
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}
	if h.hub != nil {
		checks["websocketClients"] = len(h.hub.ConnectedUsers())
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"success":   healthy,
		"status":    map[bool]string{true: "OK", false: "DEGRADED"}[healthy],
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
