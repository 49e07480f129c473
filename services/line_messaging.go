package services

import (
	"fmt"
	"log"

	"remedial_go/config"

	"github.com/line/line-bot-sdk-go/linebot"
)

// LineMessagingService wraps the LINE Messaging API client
type LineMessagingService struct {
	Bot *linebot.Client
}

// NewLineMessagingService builds a client from LINE_CHANNEL_SECRET / LINE_CHANNEL_ACCESS_TOKEN.
// Without credentials the service is returned disabled.
func NewLineMessagingService() *LineMessagingService {
	if config.AppConfig == nil || config.AppConfig.LineChannelSecret == "" || config.AppConfig.LineChannelToken == "" {
		log.Println("LINE Messaging API disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
		return &LineMessagingService{Bot: nil}
	}

	bot, err := linebot.New(config.AppConfig.LineChannelSecret, config.AppConfig.LineChannelToken)
	if err != nil {
		log.Printf("Cannot create LINE bot client: %v", err)
		return &LineMessagingService{Bot: nil}
	}

	return &LineMessagingService{Bot: bot}
}

// Enabled reports whether pushes can be sent
func (s *LineMessagingService) Enabled() bool {
	return s != nil && s.Bot != nil
}

// PushText sends a text message to a LINE user or group
func (s *LineMessagingService) PushText(to string, message string) error {
	if !s.Enabled() {
		return fmt.Errorf("LINE Bot client is not initialized")
	}

	if _, err := s.Bot.PushMessage(to, linebot.NewTextMessage(message)).Do(); err != nil {
		return fmt.Errorf("LINE Messaging API failed: %w", err)
	}
	return nil
}

// ReplyText answers a webhook event
func (s *LineMessagingService) ReplyText(replyToken string, message string) error {
	if !s.Enabled() {
		return fmt.Errorf("LINE Bot client is not initialized")
	}

	if _, err := s.Bot.ReplyMessage(replyToken, linebot.NewTextMessage(message)).Do(); err != nil {
		return fmt.Errorf("LINE reply failed: %w", err)
	}
	return nil
}
