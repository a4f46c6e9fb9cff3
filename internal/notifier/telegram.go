package notifier

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
)

type TelegramNotifier struct {
	logger *logger.Logger
	bot    *bot.Bot

	store models.RecordStore
}

// NewTelegramNotifier starts a long-polling bot. Users link their chat by
// messaging /start after registering their telegram username.
func NewTelegramNotifier(log *logger.Logger, token string, store models.RecordStore) (*TelegramNotifier, error) {
	notifier := &TelegramNotifier{
		logger: log,
		store:  store,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(notifier.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	go b.Start(context.Background())
	notifier.bot = b

	return notifier, nil
}

func (t *TelegramNotifier) SendNotification(chatID, message string) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send telegram notification: ", err)
	}
}

func (t *TelegramNotifier) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	user := update.Message.From
	t.logger.Debug("Telegram update: ", user.Username, " ", update.Message.Text)

	if update.Message.Text != "/start" {
		return
	}

	contact, err := t.store.GetContactByTelegramUsername(user.Username)
	if err != nil {
		t.logger.Error("Failed to look up contact by telegram username: ", err, " username: ", user.Username)
		return
	}

	contact.TelegramChatID = fmt.Sprint(update.Message.Chat.ID)
	if err := t.store.UpsertContact(contact); err != nil {
		t.logger.Error("Failed to save telegram chat ID: ", err)
		return
	}

	t.SendNotification(contact.TelegramChatID, "You will now receive payment notifications for address "+contact.Address)
}
