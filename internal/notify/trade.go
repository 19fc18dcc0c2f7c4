package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/papertrade/dogebot/internal/domain"
)

// Event types used to filter trade notifications.
const (
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
)

// TradeAlerts adapts a Notifier to the domain.TradeNotifier port, formatting
// position lifecycle events into operator-readable messages.
type TradeAlerts struct {
	notifier *Notifier
	symbol   string
}

// NewTradeAlerts creates a TradeAlerts that delivers through the given
// Notifier, tagging messages with the traded symbol.
func NewTradeAlerts(notifier *Notifier, symbol string) *TradeAlerts {
	return &TradeAlerts{
		notifier: notifier,
		symbol:   strings.ToUpper(symbol),
	}
}

// PositionOpened notifies that a new paper position was opened.
func (a *TradeAlerts) PositionOpened(ctx context.Context, p domain.Position) error {
	title := fmt.Sprintf("%s opened %s", p.Strategy, strings.ToUpper(string(p.Side)))
	message := fmt.Sprintf("%s %.4f x %.2f (fee %.4f)",
		a.symbol, p.EntryPrice, p.Quantity, p.EntryFee)
	return a.notifier.Notify(ctx, EventPositionOpened, title, message)
}

// PositionClosed notifies that a position was closed and settled.
func (a *TradeAlerts) PositionClosed(ctx context.Context, ev domain.ClosureEvent) error {
	r := ev.Record
	title := fmt.Sprintf("%s closed %s (%s)", r.Strategy, strings.ToUpper(string(r.Side)), r.CloseReason)
	message := fmt.Sprintf("%s %.4f -> %.4f, net PnL %+.4f, balance %.2f",
		a.symbol, r.EntryPrice, r.ClosePrice, r.NetPnL, ev.NewBalance)
	return a.notifier.Notify(ctx, EventPositionClosed, title, message)
}

// Compile-time interface check.
var _ domain.TradeNotifier = (*TradeAlerts)(nil)
