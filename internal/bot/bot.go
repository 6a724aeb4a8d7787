// Package bot is the Telegram command layer for subscribers. It only
// manages subscriber records; all pipeline work happens elsewhere.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"digestbot/internal/database"
)

const helpText = `Commands:
/start - subscribe to the digest
/language XX - set your summary language (e.g. /language EN)
/help - this message`

// Bot answers subscriber commands over long polling.
type Bot struct {
	api *tgbotapi.BotAPI
	db  *database.DB
}

// New wraps an authorized bot API.
func New(api *tgbotapi.BotAPI, db *database.DB) *Bot {
	return &Bot{api: api, db: db}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Command bot running as @%s", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	chatID := update.Message.Chat.ID
	reply, err := b.handleCommand(chatID, update.Message.Command(), update.Message.CommandArguments())
	if err != nil {
		log.Printf("Error handling /%s from chat %d: %v", update.Message.Command(), chatID, err)
		reply = "Something went wrong, please try again."
	}
	if reply == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, reply)
	if _, err := b.api.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 403 {
			log.Printf("Chat %d blocked the bot, deactivating subscriber", chatID)
			if err := b.db.SetSubscriberActive(chatID, false); err != nil {
				log.Printf("Error deactivating subscriber %d: %v", chatID, err)
			}
			return
		}
		log.Printf("Error replying to chat %d: %v", chatID, err)
	}
}

// handleCommand runs one command and returns the reply text.
func (b *Bot) handleCommand(chatID int64, command, args string) (string, error) {
	switch command {
	case "start":
		if _, err := b.db.RegisterSubscriber(chatID); err != nil {
			return "", fmt.Errorf("registering subscriber: %w", err)
		}
		return "Subscribed. Use /language XX to pick your summary language.", nil

	case "language":
		code := strings.ToUpper(strings.TrimSpace(args))
		if code == "" {
			return "Usage: /language XX (e.g. /language EN)", nil
		}
		lang, err := b.db.GetLanguageByCode(code)
		if err != nil {
			return "", fmt.Errorf("looking up language: %w", err)
		}
		if lang == nil || !lang.IsActive {
			return fmt.Sprintf("Language %s is not available.", code), nil
		}
		if _, err := b.db.RegisterSubscriber(chatID); err != nil {
			return "", fmt.Errorf("registering subscriber: %w", err)
		}
		if err := b.db.SetSubscriberLanguage(chatID, lang.ID); err != nil {
			return "", fmt.Errorf("setting language: %w", err)
		}
		return fmt.Sprintf("Your summaries will arrive in %s.", code), nil

	case "help":
		return helpText, nil
	}
	return "", nil
}
