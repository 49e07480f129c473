package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"remedial_go/database"
	"remedial_go/models"
	"remedial_go/services"
	"remedial_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LogController struct {
	archive *services.LogArchiveService
}

func NewLogController(archive *services.LogArchiveService) *LogController {
	return &LogController{archive: archive}
}

// LogResponse represents a log entry response
type LogResponse struct {
	ID         uint                   `json:"id"`
	UserID     uint                   `json:"user_id"`
	Username   string                 `json:"username,omitempty"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID uint                   `json:"resource_id"`
	Details    map[string]interface{} `json:"details"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	CreatedAt  time.Time              `json:"created_at"`
}

type logRow struct {
	models.ActivityLog
	Username string
}

func toLogResponse(row logRow) LogResponse {
	out := LogResponse{
		ID:         row.ID,
		UserID:     row.UserID,
		Username:   row.Username,
		Action:     row.Action,
		Resource:   row.Resource,
		ResourceID: row.ResourceID,
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
		CreatedAt:  row.CreatedAt,
	}
	if !row.Details.IsNull() {
		var details map[string]interface{}
		if err := json.Unmarshal(row.Details, &details); err == nil {
			out.Details = details
		}
	}
	return out
}

func logQuery() *gorm.DB {
	return database.DB.Table("activity_logs").
		Select("activity_logs.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = activity_logs.user_id").
		Where("activity_logs.deleted_at IS NULL")
}

// GetLogs retrieves paginated activity logs with filters
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := logQuery()

	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("activity_logs.user_id = ?", userID)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("activity_logs.action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("activity_logs.resource = ?", resource)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		if parsedDate, err := time.Parse(models.DateLayout, startDate); err == nil {
			query = query.Where("activity_logs.created_at >= ?", parsedDate)
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if parsedDate, err := time.Parse(models.DateLayout, endDate); err == nil {
			query = query.Where("activity_logs.created_at < ?", parsedDate.Add(24*time.Hour))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logrus.WithError(err).Error("Failed to count logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve logs count",
		})
	}

	var rows []logRow
	if err := query.Order("activity_logs.created_at DESC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		logrus.WithError(err).Error("Failed to retrieve logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve logs",
		})
	}

	logs := make([]LogResponse, len(rows))
	for i, row := range rows {
		logs[i] = toLogResponse(row)
	}

	return c.JSON(fiber.Map{
		"logs":        logs,
		"total":       total,
		"page":        page,
		"limit":       limit,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
	})
}

// GetLog returns a single activity log entry
func (lc *LogController) GetLog(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid log ID"})
	}

	var rows []logRow
	if err := logQuery().Where("activity_logs.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve log"})
	}
	if len(rows) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Log not found"})
	}
	return c.JSON(toLogResponse(rows[0]))
}

// ArchiveLogs zips logs older than ?days= to object storage and removes them (Admin only)
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "30"))
	if err != nil || days < services.MinArchiveAgeDays {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be a number of at least " + strconv.Itoa(services.MinArchiveAgeDays),
		})
	}

	archive, err := lc.archive.ArchiveOldLogs(c.UserContext(), days)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Archive storage is not configured"})
	case err != nil:
		logrus.WithError(err).Error("Failed to archive logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to archive logs"})
	case archive == nil:
		return c.JSON(fiber.Map{"message": "No logs older than " + strconv.Itoa(days) + " days"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Logs archived successfully",
		"archive": archive,
	})
}

// FlushCachedLogs moves logs queued in Redis into the database (Admin only)
func (lc *LogController) FlushCachedLogs(c *fiber.Ctx) error {
	processed, err := lc.archive.FlushCachedLogsToDatabase(c.UserContext())
	if err != nil {
		logrus.WithError(err).Error("Failed to flush cached logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":           "Failed to flush cached logs",
			"processed_count": processed,
		})
	}

	return c.JSON(fiber.Map{
		"message":         "Cached logs flushing completed",
		"processed_count": processed,
	})
}
