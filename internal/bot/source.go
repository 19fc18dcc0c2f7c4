package bot

import (
	"context"

	"github.com/papertrade/dogebot/internal/domain"
)

// HoldSource is the default signal source: it never trades, so runner ticks
// only enforce stop-loss/take-profit on positions opened through the API.
type HoldSource struct{}

// Evaluate always returns HOLD.
func (HoldSource) Evaluate(ctx context.Context, strategy string, price float64) (domain.Signal, error) {
	return domain.SignalHold, nil
}
