package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scamwatch/internal/classify"
)

// TelegramChannel pushes alerts to an operator chat through the bot API.
type TelegramChannel struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramChannel creates a Telegram-backed channel.
func NewTelegramChannel(botToken string, chatID int64, logger *zap.Logger) (*TelegramChannel, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("telegram notifier initialized", zap.String("bot", api.Self.UserName))

	return &TelegramChannel{api: api, chatID: chatID, logger: logger}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Send posts the alert to the configured chat.
func (c *TelegramChannel) Send(_ context.Context, change classify.Change) error {
	msg := tgbotapi.NewMessage(c.chatID, formatAlert(change))
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

var _ Channel = (*TelegramChannel)(nil)
