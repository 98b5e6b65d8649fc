// Package telegram delivers alert digests through a Telegram bot.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/metrics"
	"github.com/parlwatch/parliament-monitor/internal/monitor"
	"github.com/parlwatch/parliament-monitor/internal/notify"
)

// MessageSender is the slice of the bot API the notifier needs.
// *tgbotapi.BotAPI satisfies it.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier implements monitor.Notifier over the Telegram bot API. One
// dispatch sends one digest message.
type Notifier struct {
	sender MessageSender
	chatID int64
	clock  monitor.Clock
	logger *zap.Logger
}

// New authenticates against the bot API and returns a Notifier.
func New(token string, chatID int64, clock monitor.Clock, logger *zap.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return NewWithSender(api, chatID, clock, logger), nil
}

// NewWithSender constructs a notifier from an existing sender (primarily for
// testing).
func NewWithSender(sender MessageSender, chatID int64, clock monitor.Clock, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		clock:  clock,
		logger: logger,
	}
}

// Dispatch sends all pending alerts as a single digest message. Nothing to
// send reports (false, nil) so callers leave the queue untouched.
func (n *Notifier) Dispatch(ctx context.Context, alerts []monitor.Alert) (bool, error) {
	if len(alerts) == 0 {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, &monitor.NotifyError{Transport: "telegram", Err: err}
	}

	msg := tgbotapi.NewMessage(n.chatID, notify.FormatDigest(alerts, n.clock.Now()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.sender.Send(msg); err != nil {
		return false, &monitor.NotifyError{Transport: "telegram", Err: err}
	}

	for _, a := range alerts {
		metrics.ObserveAlertDispatched(string(a.Tier))
	}
	n.logger.Info("alert digest sent", zap.Int("alerts", len(alerts)))
	return true, nil
}
