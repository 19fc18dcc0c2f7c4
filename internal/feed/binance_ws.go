// Package feed streams live market data into the price cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/papertrade/dogebot/internal/domain"
)

// PriceHandler is called for every price update the feed receives.
type PriceHandler func(ctx context.Context, symbol string, price float64, ts time.Time)

// BinanceWSFeed subscribes to a symbol's miniTicker stream over the Binance
// WebSocket API, writes each close price to the price cache, and invokes the
// optional handler. It reconnects with backoff on disconnect.
type BinanceWSFeed struct {
	wsHost  string
	symbol  string
	prices  domain.PriceCache
	onPrice PriceHandler
	logger  *slog.Logger
}

// NewBinanceWSFeed creates a feed for one symbol. wsHost is the stream root,
// e.g. "wss://stream.binance.com:9443". prices and onPrice may each be nil.
func NewBinanceWSFeed(wsHost, symbol string, prices domain.PriceCache, onPrice PriceHandler, logger *slog.Logger) *BinanceWSFeed {
	return &BinanceWSFeed{
		wsHost:  wsHost,
		symbol:  symbol,
		prices:  prices,
		onPrice: onPrice,
		logger:  logger.With(slog.String("component", "binance_ws_feed")),
	}
}

// miniTicker is the subset of the Binance 24h miniTicker event the feed uses.
type miniTicker struct {
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

// Run connects and streams until ctx is cancelled, reconnecting on error.
func (f *BinanceWSFeed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("binance ws disconnected, reconnecting",
			slog.String("symbol", f.symbol),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *BinanceWSFeed) runConnection(ctx context.Context) error {
	streamURL := fmt.Sprintf("%s/ws/%s@miniTicker", f.wsHost, strings.ToLower(f.symbol))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", streamURL, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled. The done channel
	// releases the watcher when this connection ends first, so reconnects
	// do not accumulate watcher goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	f.logger.Info("binance ws connected", slog.String("symbol", f.symbol))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w: %v", domain.ErrWSDisconnect, err)
		}

		var mt miniTicker
		if err := json.Unmarshal(data, &mt); err != nil {
			f.logger.Warn("unparseable ticker message", slog.String("error", err.Error()))
			continue
		}
		price, err := strconv.ParseFloat(mt.Close, 64)
		if err != nil || price <= 0 {
			continue
		}

		ts := time.UnixMilli(mt.EventTime)
		if f.prices != nil {
			if err := f.prices.SetPrice(ctx, mt.Symbol, price, ts); err != nil {
				f.logger.Warn("price cache write failed",
					slog.String("symbol", mt.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
		if f.onPrice != nil {
			f.onPrice(ctx, mt.Symbol, price, ts)
		}
	}
}
