package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"remedial_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"gorm.io/gorm"
)

// Replier answers a webhook event through its reply token
type Replier interface {
	ReplyText(replyToken string, message string) error
}

// LinkTokens resolves the one-time codes parents get from the parent portal
type LinkTokens interface {
	Consume(ctx context.Context, token string) (uint, bool, error)
}

type LineWebhookHandler struct {
	DB      *gorm.DB
	Secret  string
	Replier Replier
	Tokens  LinkTokens
}

func NewLineWebhookHandler(db *gorm.DB, secret string, replier Replier, tokens LinkTokens) *LineWebhookHandler {
	if secret == "" {
		log.Println("⚠️ LINE channel secret missing: webhook disabled")
	}
	return &LineWebhookHandler{DB: db, Secret: secret, Replier: replier, Tokens: tokens}
}

const (
	linkHelp    = "Get a link code from the parent portal, then send LINK <code> to receive remedial absence notices for your child."
	linkInvalid = "That link code is invalid or has expired. Please request a new one from the parent portal."
)

// Handle receives LINE webhook events
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.Secret == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	signature := c.Get("X-Line-Signature")
	if signature == "" {
		log.Println("❌ Missing signature header")
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if !validateSignature(h.Secret, c.Body(), signature) {
		log.Printf("❌ Signature mismatch for webhook body of %d bytes", len(c.Body()))
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var webhook struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(c.Body(), &webhook); err != nil {
		log.Printf("❌ Failed to parse event JSON: %v", err)
		return c.SendStatus(fiber.StatusBadRequest)
	}

	// Answer 200 first so LINE does not retry while we hit the database
	go func(events []*linebot.Event) {
		ctx := context.Background()
		for _, event := range events {
			reply := h.handleEvent(ctx, event)
			if reply == "" || event.ReplyToken == "" || h.Replier == nil {
				continue
			}
			if err := h.Replier.ReplyText(event.ReplyToken, reply); err != nil {
				log.Printf("❌ LINE reply failed: %v", err)
			}
		}
	}(webhook.Events)

	return c.SendStatus(fiber.StatusOK)
}

// handleEvent applies one event and returns the reply text, if any
func (h *LineWebhookHandler) handleEvent(ctx context.Context, event *linebot.Event) string {
	if event == nil || event.Source == nil || event.Source.UserID == "" {
		return ""
	}
	lineUserID := event.Source.UserID

	switch event.Type {
	case linebot.EventTypeFollow:
		return linkHelp

	case linebot.EventTypeUnfollow:
		res := h.DB.Model(&models.User{}).Where("line_user_id = ?", lineUserID).Update("line_user_id", "")
		if res.Error != nil {
			log.Printf("❌ Failed to unlink LINE user %s: %v", lineUserID, res.Error)
		} else if res.RowsAffected > 0 {
			log.Printf("🚪 LINE user %s unfollowed, unlinked %d account(s)", lineUserID, res.RowsAffected)
		}
		return ""

	case linebot.EventTypeMessage:
		msg, ok := event.Message.(*linebot.TextMessage)
		if !ok {
			return ""
		}
		token, isLink := parseLinkCommand(msg.Text)
		if !isLink {
			return linkHelp
		}
		reply, err := h.LinkParent(ctx, lineUserID, token)
		if err != nil {
			log.Printf("❌ LINK for LINE user %s failed: %v", lineUserID, err)
			return "Sorry, linking failed. Please try again later."
		}
		return reply
	}
	return ""
}

// parseLinkCommand accepts "LINK <code>" case-insensitively
func parseLinkCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "LINK") {
		return "", false
	}
	return fields[1], true
}

// LinkParent attaches lineUserID to the parent account the one-time token was
// issued to. The LINE user is detached from any other account first.
func (h *LineWebhookHandler) LinkParent(ctx context.Context, lineUserID, token string) (string, error) {
	if h.Tokens == nil {
		return "LINE linking is not available right now. Please contact the school.", nil
	}
	userID, ok, err := h.Tokens.Consume(ctx, token)
	if err != nil {
		return "", err
	}
	if !ok {
		log.Printf("🚫 Rejected LINK with unknown code from LINE user %s", lineUserID)
		return linkInvalid, nil
	}

	var parent models.User
	err = h.DB.WithContext(ctx).Where("id = ? AND role = ? AND status = ?", userID, models.RoleParent, "active").First(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return linkInvalid, nil
	}
	if err != nil {
		return "", err
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("line_user_id = ? AND id <> ?", lineUserID, parent.ID).
			Update("line_user_id", "").Error; err != nil {
			return err
		}
		return tx.Model(&parent).Update("line_user_id", lineUserID).Error
	})
	if err != nil {
		return "", err
	}

	var children []models.Student
	if err := h.DB.WithContext(ctx).Where("parent_user_id = ?", parent.ID).Order("code").Find(&children).Error; err != nil {
		return "", err
	}
	names := make([]string, 0, len(children))
	for _, st := range children {
		names = append(names, st.FullName())
	}
	log.Printf("✅ Linked LINE user %s to parent %d", lineUserID, parent.ID)
	if len(names) == 0 {
		return "Linked. You will receive remedial absence notices for your children.", nil
	}
	return fmt.Sprintf("Linked. You will receive remedial absence notices for %s.", strings.Join(names, ", ")), nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// validateSignature checks X-Line-Signature against the channel secret
func validateSignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}
