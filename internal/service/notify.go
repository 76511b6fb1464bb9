package service

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier delivers reminders through the launcher's bot chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(botToken string, chatID int64, debug bool) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	bot.Debug = debug

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (n *TelegramNotifier) Show(ctx context.Context, title, message, channel string) error {
	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("%s\n%s", title, message))
	_, err := n.bot.Send(msg)
	return err
}

// NopNotifier is used in headless runs where no bot is configured.
type NopNotifier struct{}

func (NopNotifier) Show(ctx context.Context, title, message, channel string) error {
	return nil
}
