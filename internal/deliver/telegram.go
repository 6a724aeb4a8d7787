// Package deliver sends finished summaries to subscribers, at most once per
// (summary, subscriber) pair.
package deliver

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger sends one text message to a chat.
type Messenger interface {
	Send(chatID int64, text string) error
}

var (
	// ErrBadRequest marks a message the provider rejects permanently;
	// retrying the same payload can never succeed.
	ErrBadRequest = errors.New("bad request")
	// ErrBlocked marks a chat whose owner has blocked the bot.
	ErrBlocked = errors.New("blocked by recipient")
)

// TelegramMessenger implements Messenger on the Telegram Bot API.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramMessenger wraps an authorized bot.
func NewTelegramMessenger(bot *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{bot: bot}
}

func (m *TelegramMessenger) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	_, err := m.bot.Send(msg)
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBadRequest)
		case 403:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBlocked)
		}
	}
	return err
}
