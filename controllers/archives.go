package controllers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"remedial_go/database"
	"remedial_go/models"
	"remedial_go/services"
	"remedial_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ArchiveController lists and downloads files recorded in export_archives
type ArchiveController struct {
	store storage.ObjectStore
}

func NewArchiveController(store storage.ObjectStore) *ArchiveController {
	return &ArchiveController{store: store}
}

// GetArchives lists archives, newest first. ?kind= filters attendance or activity_logs.
func (ac *ArchiveController) GetArchives(c *fiber.Ctx) error {
	query := database.DB.Order("created_at DESC")
	switch kind := c.Query("kind"); kind {
	case "":
	case models.ArchiveAttendance, models.ArchiveActivityLogs:
		query = query.Where("kind = ?", kind)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be attendance or activity_logs"})
	}

	var rows []models.ExportArchive
	if err := query.Limit(200).Find(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch archives"})
	}
	return c.JSON(fiber.Map{"success": true, "archives": rows})
}

// DownloadArchive streams a completed archive back from object storage
func (ac *ArchiveController) DownloadArchive(c *fiber.Ctx) error {
	if ac.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Archive storage is not configured"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid archive ID"})
	}

	var row models.ExportArchive
	if err := database.DB.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Archive not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch archive"})
	}
	if row.Status != "completed" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Archive upload did not complete", "status": row.Status})
	}

	body, err := ac.store.Get(c.UserContext(), row.S3Key)
	if err != nil {
		logrus.WithError(err).WithField("s3_key", row.S3Key).Error("archive download failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to read archive"})
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to read archive"})
	}

	contentType := "application/octet-stream"
	switch filepath.Ext(row.FileName) {
	case ".xlsx":
		contentType = services.XLSXContentType
	case ".zip":
		contentType = "application/zip"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, row.FileName))
	return c.Send(content)
}
