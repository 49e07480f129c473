package controllers

import (
	"remedial_go/database"
	"remedial_go/middleware"
	"remedial_go/models"
	"remedial_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LineLinkController lets a signed-in parent attach or detach their LINE account
type LineLinkController struct {
	tokens services.LineLinkTokens
}

func NewLineLinkController(tokens services.LineLinkTokens) *LineLinkController {
	return &LineLinkController{tokens: tokens}
}

// CreateLinkToken issues a one-time code the parent sends to the LINE bot
func (lc *LineLinkController) CreateLinkToken(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	if lc.tokens == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "LINE linking is not available"})
	}

	token, err := lc.tokens.Issue(c.UserContext(), user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("issue line link token failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create link code"})
	}

	middleware.LogActivity(c, "CREATE", "line_link", user.ID, nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"token":      token,
		"command":    "LINK " + token,
		"expires_in": int(lc.tokens.TTL().Seconds()),
		"linked":     user.LineUserID != "",
	})
}

// Unlink stops LINE delivery for the current parent
func (lc *LineLinkController) Unlink(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("line_user_id", "").Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to unlink LINE account"})
	}
	middleware.LogActivity(c, "DELETE", "line_link", user.ID, nil)

	return c.JSON(fiber.Map{"success": true, "message": "LINE account unlinked"})
}
