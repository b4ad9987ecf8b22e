package integration

import (
	"errors"
	"testing"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if r.err != nil {
		return tgbotapi.Message{}, r.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifierForwardsAlerts(t *testing.T) {
	sender := &recordingSender{}
	n := NewTelegramNotifier(sender, 42)

	n.HandleTick(entities.TickResult{State: entities.ReservoirState{Level: 500}})
	assert.Empty(t, sender.sent)

	n.HandleTick(entities.TickResult{
		Alert: entities.AlertOverflow,
		State: entities.ReservoirState{Level: 1000},
	})
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Risk of overflow")
	assert.Contains(t, sender.sent[0].Text, "1000.0")
}

func TestTelegramNotifierReportsStorageErrors(t *testing.T) {
	sender := &recordingSender{}
	n := NewTelegramNotifier(sender, 7)

	n.HandleTick(entities.TickResult{StorageErr: errors.New("disk full")})
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "disk full")
}

func TestTelegramNotifierSendFailureIsNotFatal(t *testing.T) {
	sender := &recordingSender{err: errors.New("network down")}
	n := NewTelegramNotifier(sender, 7)

	err := n.Notify("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")

	assert.NotPanics(t, func() {
		n.HandleTick(entities.TickResult{Alert: entities.AlertUnderflow})
	})
}
