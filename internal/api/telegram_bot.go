// Package api provides the front-ends that drive and display the simulation
package api

import (
	"context"
	"fmt"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// SimulationCommands is the command surface a front-end may drive
type SimulationCommands interface {
	Start(ctx context.Context) error
	Pause()
	Reset(ctx context.Context)
	State() entities.ReservoirState
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot         *tgbotapi.BotAPI
	sim         SimulationCommands
	allowedChat int64
	log         *logrus.Entry
}

// NewTelegramBot creates a new Telegram bot handler.
// When allowedChat is non-zero only that chat may issue commands.
func NewTelegramBot(bot *tgbotapi.BotAPI, sim SimulationCommands, allowedChat int64) *TelegramBot {
	return &TelegramBot{
		bot:         bot,
		sim:         sim,
		allowedChat: allowedChat,
		log:         logrus.WithField("component", "telegram-bot"),
	}
}

// Start listens for messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) error {
	t.log.Infof("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.log.Info("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram update channel closed")
			}
			if update.Message == nil {
				continue
			}
			t.log.Infof("Received message from %s (ID: %d): %s",
				userName(update.Message), update.Message.Chat.ID, update.Message.Text)

			msg := tgbotapi.NewMessage(update.Message.Chat.ID, t.HandleMessage(ctx, update.Message))
			if _, err := t.bot.Send(msg); err != nil {
				t.log.Errorf("Error sending message: %v", err)
			}
		}
	}
}

// HandleMessage returns the reply for an incoming message
func (t *TelegramBot) HandleMessage(ctx context.Context, message *tgbotapi.Message) string {
	if t.allowedChat != 0 && (message.Chat == nil || message.Chat.ID != t.allowedChat) {
		t.log.Warnf("Ignoring command from unauthorized chat")
		return "This bot is not configured to take commands from this chat."
	}
	if !message.IsCommand() {
		return "I don't understand. Use /help to see available commands."
	}

	switch message.Command() {
	case "start":
		if t.sim.State().Running {
			return "Simulation is already running."
		}
		if err := t.sim.Start(ctx); err != nil {
			t.log.Errorf("Error starting simulation: %v", err)
			return "Could not start the simulation. Please try again later."
		}
		return "Simulation started.\n\n" + FormatState(t.sim.State())

	case "pause":
		if !t.sim.State().Running {
			return "Simulation is not running. Use /start to resume."
		}
		t.sim.Pause()
		return "Simulation paused.\n\n" + FormatState(t.sim.State())

	case "reset":
		t.sim.Reset(ctx)
		return "Simulator reset."

	case "status":
		return FormatState(t.sim.State())

	case "help":
		return "Available commands:\n" +
			"/start - Start or resume the simulation\n" +
			"/pause - Pause the simulation\n" +
			"/reset - Stop and restore the initial level\n" +
			"/status - Show the reservoir state\n" +
			"/help - Show this help message"

	default:
		t.log.Infof("Received unknown command /%s", message.Command())
		return "Unknown command. Use /help to see available commands."
	}
}

// FormatState renders the reservoir state for chat output
func FormatState(s entities.ReservoirState) string {
	status := "⏸ paused"
	if s.Running {
		status = "▶️ running"
	}
	return fmt.Sprintf("💧 Level: %.2f L / %.0f L (%.1f %%)\n"+
		"📈 Inflow total: %.1f L\n"+
		"📉 Outflow total: %.1f L\n"+
		"🚨 Alerts: %d\n"+
		"Status: %s",
		s.Level, s.Capacity, s.Percent(), s.CumulativeInflow, s.CumulativeOutflow, s.AlertCount, status)
}

func userName(m *tgbotapi.Message) string {
	if m.From == nil {
		return "unknown"
	}
	return m.From.UserName
}
