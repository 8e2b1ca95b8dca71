package service

import (
	"context"
	"fmt"

	"bybit_bot/internal/modules/config"
	"bybit_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client — тонкая обёртка над BotAPI. Отправка fire-and-forget:
// ошибка доставки логируется, ретраев нет.
type Client struct {
	bot *tgbot.BotAPI
}

func NewClient(cfg *config.Config) (*Client, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Client{bot: b}, nil
}

func (c *Client) Send(_ context.Context, chatID int64, msg string) {
	if _, err := c.bot.Send(tgbot.NewMessage(chatID, msg)); err != nil {
		logger.Error("telegram: send to %d: %v", chatID, err)
	}
}

func (c *Client) SendF(ctx context.Context, chatID int64, format string, args ...any) {
	c.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

// sendWithKeyboard — сообщение с reply-клавиатурой меню.
func (c *Client) sendWithKeyboard(chatID int64, msg string, kb any) {
	m := tgbot.NewMessage(chatID, msg)
	m.ReplyMarkup = kb
	if _, err := c.bot.Send(m); err != nil {
		logger.Error("telegram: send to %d: %v", chatID, err)
	}
}
