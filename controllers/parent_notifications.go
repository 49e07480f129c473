package controllers

import (
	"errors"
	"time"

	"remedial_go/database"
	"remedial_go/middleware"
	"remedial_go/models"
	"remedial_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ParentNotificationController serves the absence notices of a parent's children
type ParentNotificationController struct{}

// GetParentNotifications lists absence notices for the current parent's children,
// newest date first. ?status=unread|read filters.
func (pc *ParentNotificationController) GetParentNotifications(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	children := database.DB.Model(&models.Student{}).Select("id").Where("parent_user_id = ?", user.ID)
	query := database.DB.Preload("Student").Where("student_id IN (?)", children)

	switch status := c.Query("status"); status {
	case "":
	case models.NotificationUnread, models.NotificationRead:
		query = query.Where("status = ?", status)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be unread or read"})
	}

	var rows []models.ParentNotification
	if err := query.Order("date DESC, id DESC").Find(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch notifications"})
	}

	out := make([]utils.ParentNotificationDTO, 0, len(rows))
	unread := 0
	for _, n := range rows {
		if n.Status == models.NotificationUnread {
			unread++
		}
		out = append(out, utils.ToParentNotificationDTO(n))
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"notifications": out,
		"unread_count":  unread,
	})
}

// MarkParentNotificationRead marks one notice read when it belongs to one of the parent's children
func (pc *ParentNotificationController) MarkParentNotificationRead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification ID"})
	}

	var n models.ParentNotification
	err = database.DB.Preload("Student").
		Joins("JOIN students ON students.id = parent_notifications.student_id").
		Where("parent_notifications.id = ? AND students.parent_user_id = ?", id, user.ID).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch notification"})
	}

	if n.Status != models.NotificationRead {
		now := time.Now()
		if err := database.DB.Model(&n).Updates(map[string]interface{}{
			"status":  models.NotificationRead,
			"read_at": &now,
		}).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark notification as read"})
		}
		n.Status = models.NotificationRead
		n.ReadAt = &now
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"notification": utils.ToParentNotificationDTO(n),
	})
}
