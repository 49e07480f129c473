package controllers

import (
	"remedial_go/database"
	"remedial_go/services"

	"github.com/gofiber/fiber/v2"
)

// HealthController exposes the health endpoints.
type HealthController struct {
	service *services.HealthService
}

// NewHealthController falls back to probing the global database and Redis handles.
func NewHealthController(service *services.HealthService) *HealthController {
	if service == nil {
		service = services.NewHealthService(database.DB, database.GetRedisClient(), "", "")
	}
	return &HealthController{service: service}
}

// GetHealthStatus returns the aggregated health report.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	report := hc.service.GetHealthReport(c.UserContext())
	statusCode := hc.service.HTTPStatusForOverall(report.Status)
	return c.Status(statusCode).JSON(report)
}

// GetLiveness answers without touching any dependency.
func (hc *HealthController) GetLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
