package integration

import (
	"fmt"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// MessageSender is the part of the Telegram API used to push messages
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes reservoir alerts to a Telegram chat
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
	log    *logrus.Entry
}

// NewTelegramNotifier creates a notifier for the given chat
func NewTelegramNotifier(sender MessageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		log:    logrus.WithField("component", "telegram-notifier"),
	}
}

// Notify sends text to the configured chat
func (n *TelegramNotifier) Notify(text string) error {
	if _, err := n.sender.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", n.chatID, err)
	}
	return nil
}

// HandleTick forwards alerts and storage warnings from a tick. Send failures are only logged.
func (n *TelegramNotifier) HandleTick(result entities.TickResult) {
	if result.Alert != entities.AlertNone {
		if err := n.Notify("⚠️ ALERT: " + result.Alert.Message(result.State.Level)); err != nil {
			n.log.Warnf("Warning: %v", err)
		}
	}
	if result.StorageErr != nil {
		if err := n.Notify(fmt.Sprintf("History could not be saved: %v", result.StorageErr)); err != nil {
			n.log.Warnf("Warning: %v", err)
		}
	}
}
