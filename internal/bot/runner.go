// Package bot drives the tracker: once per tick interval it resolves the
// current price, asks the signal source for each active strategy's signal,
// and feeds the result to the tracker. The strategies themselves live
// outside this system; the runner only plumbs their output.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/tracker"
)

// Runner ticks every configured strategy against the latest market price.
type Runner struct {
	tracker    *tracker.Tracker
	source     domain.SignalSource
	prices     domain.PriceSource // REST fallback
	cache      domain.PriceCache  // optional, preferred when fresh
	symbol     string
	strategies []string
	interval   time.Duration
	logger     *slog.Logger
}

// NewRunner creates a Runner. cache may be nil; prices is required.
func NewRunner(
	tr *tracker.Tracker,
	source domain.SignalSource,
	prices domain.PriceSource,
	cache domain.PriceCache,
	symbol string,
	strategies []string,
	interval time.Duration,
	logger *slog.Logger,
) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{
		tracker:    tr,
		source:     source,
		prices:     prices,
		cache:      cache,
		symbol:     symbol,
		strategies: strategies,
		interval:   interval,
		logger:     logger.With(slog.String("component", "bot_runner")),
	}
}

// Run executes the tick loop until the context is cancelled. A failed tick
// is logged and skipped; the loop itself never dies on a bad tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	price, err := r.currentPrice(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "tick skipped, no price",
			slog.String("symbol", r.symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, strategy := range r.strategies {
		if !r.tracker.BotActive(strategy) {
			continue
		}

		signal, err := r.source.Evaluate(ctx, strategy, price)
		if err != nil {
			r.logger.WarnContext(ctx, "signal evaluation failed, holding",
				slog.String("strategy", strategy),
				slog.String("error", err.Error()),
			)
			signal = domain.SignalHold
		}

		if _, err := r.tracker.Update(ctx, strategy, signal, price, 0); err != nil {
			r.logger.WarnContext(ctx, "tracker update failed",
				slog.String("strategy", strategy),
				slog.String("error", err.Error()),
			)
		}
	}
}

// currentPrice prefers a fresh cached price (written by the WS feed) and
// falls back to the REST source.
func (r *Runner) currentPrice(ctx context.Context) (float64, error) {
	if r.cache != nil {
		price, ts, err := r.cache.GetPrice(ctx, r.symbol)
		if err == nil && time.Since(ts) < 2*r.interval {
			return price, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "price cache read failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return r.prices.CurrentPrice(ctx, r.symbol)
}
