package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papertrade/dogebot/internal/bot"
	"github.com/papertrade/dogebot/internal/feed"
	"github.com/papertrade/dogebot/internal/server"
	"github.com/papertrade/dogebot/internal/server/handler"
	"github.com/papertrade/dogebot/internal/server/ws"
)

// defaultRetentionDays is the archive cutoff when none is configured.
const defaultRetentionDays = 30

// TrackMode runs the full paper-trading engine: the market data feed, the
// per-strategy tick loop, the periodic snapshot flush, and (when enabled)
// the HTTP/WebSocket API.
func (a *App) TrackMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	// Periodic snapshot flush with a final flush on shutdown.
	g.Go(func() error {
		return deps.Tracker.Run(ctx, a.cfg.Tracker.FlushInterval.Duration)
	})

	// Live price feed keeps the Redis price cache warm so ticks avoid REST
	// round-trips. Without Redis the runner polls REST directly.
	if deps.PriceCache != nil {
		var onPrice feed.PriceHandler
		if deps.SignalBus != nil {
			bus, logger := deps.SignalBus, a.logger
			onPrice = func(ctx context.Context, symbol string, price float64, ts time.Time) {
				payload, _ := json.Marshal(map[string]any{
					"event":  "price",
					"symbol": symbol,
					"price":  price,
					"ts":     ts.UTC().Format(time.RFC3339),
				})
				if err := bus.Publish(ctx, "prices", payload); err != nil {
					logger.Warn("publish price event failed", slog.String("error", err.Error()))
				}
			}
		}
		wsFeed := feed.NewBinanceWSFeed(
			a.cfg.Binance.WsHost,
			a.cfg.Tracker.Symbol,
			deps.PriceCache,
			onPrice,
			a.logger,
		)
		g.Go(func() error {
			return wsFeed.Run(ctx)
		})
	}

	runner := bot.NewRunner(
		deps.Tracker,
		bot.HoldSource{},
		deps.Prices,
		deps.PriceCache,
		a.cfg.Tracker.Symbol,
		strategyNames(a.cfg.Strategies),
		a.cfg.Tracker.TickInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return runner.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServeMode exposes the HTTP/WebSocket API over the persisted state without
// running the market feed or the tick loop. Manual signals through the API
// still mutate state.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: serve mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Manual signals can still close and open positions, so the snapshot
	// flush loop runs here too.
	g.Go(func() error {
		return deps.Tracker.Run(ctx, a.cfg.Tracker.FlushInterval.Duration)
	})

	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// ArchiveMode performs a one-shot upload of closed trades older than the
// retention window to object storage, then exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires postgres and s3 to be enabled")
	}

	retention := a.cfg.S3.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)

	n, err := deps.Archiver.ArchiveHistory(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive history: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("records", n),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// startHTTPServer adds the HTTP server (and, when a signal bus exists, the
// WebSocket hub) to the given errgroup. The server is shut down gracefully
// when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			Symbol:    a.cfg.Tracker.Symbol,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.cfg.Mode),
		Positions: handler.NewPositionHandler(deps.Tracker, a.logger),
		History:   handler.NewHistoryHandler(deps.Tracker, a.logger),
		Reports:   handler.NewReportHandler(deps.Tracker, a.logger),
		Bots:      handler.NewBotHandler(deps.Tracker, a.logger),
		Signals:   handler.NewSignalHandler(deps.Tracker, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// strategyNames returns the configured strategy names in stable order.
func strategyNames[T any](strategies map[string]T) []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
