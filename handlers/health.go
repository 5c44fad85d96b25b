package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/database"
	"github.com/pakuniscraper/api/utils/response"
)

// HandleCheckHealth reports liveness and storage connectivity
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	dbStatus := "ok"
	statusCode := fiber.StatusOK
	marker := response.StatusSuccess
	if err := store.HealthCheck(); err != nil {
		dbStatus = "unavailable"
		statusCode = fiber.StatusServiceUnavailable
		marker = response.StatusError
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":   marker,
		"database": dbStatus,
	})
}
