package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// sender is the part of *tb.Bot used here
type sender interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
}

// TelegramNotifier sends alerts to one Telegram chat.
type TelegramNotifier struct {
	client sender
	chat   tb.Recipient
	logger logrus.FieldLogger
}

// NewTelegramNotifier connects a bot with token and targets chatID.
func NewTelegramNotifier(token string, chatID int64, logger logrus.FieldLogger) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	client, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: pollingTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramNotifier(client, tb.ChatID(chatID), logger), nil
}

func newTelegramNotifier(client sender, chat tb.Recipient, logger logrus.FieldLogger) *TelegramNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TelegramNotifier{client: client, chat: chat, logger: logger}
}

// Notify sends the alert text. The bot API call is not cancelable; ctx is only
// checked before sending.
func (t *TelegramNotifier) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.client.Send(t.chat, a.Text()); err != nil {
		t.logger.WithError(err).Warn("Failed to send telegram alert")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
