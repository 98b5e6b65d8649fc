// Package noop provides a disabled notification transport. Alerts stay
// queued in the store until a real transport is configured.
package noop

import (
	"context"

	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Notifier discards nothing: it reports not-sent so alerts remain pending.
type Notifier struct {
	logger *zap.Logger
}

// New returns a Notifier.
func New(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Dispatch never delivers and never fails.
func (n *Notifier) Dispatch(_ context.Context, alerts []monitor.Alert) (bool, error) {
	if len(alerts) > 0 {
		n.logger.Debug("notifications disabled, alerts remain queued", zap.Int("alerts", len(alerts)))
	}
	return false, nil
}
