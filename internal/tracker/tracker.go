// Package tracker implements the position-tracking and accounting engine. A
// Tracker owns every strategy's open-position set, the append-only trade
// history, and the account ledger. External callers feed it one
// (strategy, signal, price, quantity) tick at a time; the tracker decides to
// open, refresh, or close positions and settles realized PnL into the ledger.
//
// The tracker is constructed once by the process entry point and handed to
// every dependent explicitly; there is no package-level instance.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/fees"
	"github.com/papertrade/dogebot/internal/ledger"
)

// RiskParams is the per-strategy risk configuration consumed, not owned, by
// the tracker. Percentages are whole percents (2.5 means 2.5%); a zero or
// negative percentage disables that threshold. FeeRate is a fraction
// (0.00075 means 0.075%).
type RiskParams struct {
	StopLossPct   float64
	TakeProfitPct float64
	FeeRate       float64
	Quantity      float64
}

// Options configures a Tracker.
type Options struct {
	// Risk maps strategy name to its risk parameters. Unknown strategies
	// fall back to Default.
	Risk map[string]RiskParams

	// Default is used for strategies without an explicit risk entry.
	Default RiskParams

	// ReverseOnSignal opens a position in the new direction after an
	// opposing signal closes the old one.
	ReverseOnSignal bool
}

// Tracker is the single owner of all mutable position and account state. One
// mutex serializes every mutation, which also serializes interleaved
// open/close sequences per strategy.
type Tracker struct {
	mu      sync.Mutex
	open    map[string]map[string]*domain.Position
	order   map[string][]string // per-strategy insertion order, for deterministic reporting
	history []domain.HistoryRecord
	lastSig map[string]domain.Signal
	botOn   map[string]bool
	dirty   bool

	ledger   *ledger.Ledger
	store    domain.SnapshotStore
	bus      domain.SignalBus     // optional
	sink     domain.HistorySink   // optional
	notifier domain.TradeNotifier // optional
	opts     Options
	logger   *slog.Logger
}

// New creates a Tracker. The bus and sink are optional; pass nil to disable
// event publication and the history mirror.
func New(opts Options, led *ledger.Ledger, store domain.SnapshotStore, bus domain.SignalBus, sink domain.HistorySink, logger *slog.Logger) *Tracker {
	return &Tracker{
		open:    make(map[string]map[string]*domain.Position),
		order:   make(map[string][]string),
		lastSig: make(map[string]domain.Signal),
		botOn:   make(map[string]bool),
		ledger:  led,
		store:   store,
		bus:     bus,
		sink:    sink,
		opts:    opts,
		logger:  logger.With(slog.String("component", "tracker")),
	}
}

// SetNotifier attaches an optional trade notifier. Call before the first
// Update; the tracker does not synchronize this field.
func (t *Tracker) SetNotifier(n domain.TradeNotifier) {
	t.notifier = n
}

func (t *Tracker) risk(strategy string) RiskParams {
	if rp, ok := t.opts.Risk[strategy]; ok {
		return rp
	}
	return t.opts.Default
}

// Update processes one tick for a strategy. HOLD ticks only evaluate
// stop-loss/take-profit on existing positions; BUY/SELL ticks additionally
// close opposing positions and open a new position when no same-side
// position exists. A repeated same-side signal refreshes the existing
// positions instead of stacking a duplicate.
//
// Pass quantity <= 0 to use the strategy's configured quantity.
func (t *Tracker) Update(ctx context.Context, strategy string, signal domain.Signal, price, quantity float64) ([]domain.ClosureEvent, error) {
	t.mu.Lock()
	t.lastSig[strategy] = signal

	var (
		events []domain.ClosureEvent
		opened *domain.Position
		err    error
	)

	side, tradeable := signal.Side()
	switch {
	case !tradeable:
		// HOLD: close-if-triggered tick over every open position.
		events = t.tickLocked(strategy, price, "")

	default:
		// Opposing positions close first, same-side positions are refreshed
		// rather than stacked, and a new position opens only when the
		// strategy held no same-side position before this tick.
		hadSame, hadOpposing := false, false
		for _, p := range t.open[strategy] {
			if p.Side == side {
				hadSame = true
			} else {
				hadOpposing = true
			}
		}

		events = t.tickLocked(strategy, price, side)

		if !hadSame && (!hadOpposing || t.opts.ReverseOnSignal) {
			opened, err = t.openLocked(strategy, side, price, quantity)
		}
	}
	t.mu.Unlock()

	t.publishClosures(ctx, events)
	if opened != nil {
		t.publishOpened(ctx, opened)
	}
	if signal != domain.SignalHold {
		t.publishSignal(ctx, strategy, signal, price)
	}
	if err != nil {
		return events, err
	}
	return events, nil
}

// Open explicitly opens an additional position for a strategy, bypassing the
// same-side refresh policy. This is how callers stack concurrent positions.
func (t *Tracker) Open(ctx context.Context, strategy string, side domain.Side, price, quantity float64) (domain.Position, error) {
	t.mu.Lock()
	p, err := t.openLocked(strategy, side, price, quantity)
	t.mu.Unlock()

	if err != nil {
		return domain.Position{}, err
	}
	t.publishOpened(ctx, p)
	return *p, nil
}

// openLocked validates the entry, snapshots the position, and registers it in
// the strategy's open set. Caller holds t.mu.
func (t *Tracker) openLocked(strategy string, side domain.Side, price, quantity float64) (*domain.Position, error) {
	rp := t.risk(strategy)
	if quantity <= 0 {
		quantity = rp.Quantity
	}
	if price <= 0 || quantity <= 0 {
		t.logger.Warn("rejected position open",
			slog.String("strategy", strategy),
			slog.Float64("price", price),
			slog.Float64("quantity", quantity),
		)
		return nil, fmt.Errorf("tracker: open %s %s: %w", strategy, side, domain.ErrZeroPriceOrQuantity)
	}

	p := &domain.Position{
		ID:           uuid.NewString(),
		Strategy:     strategy,
		Side:         side,
		EntryPrice:   price,
		Quantity:     quantity,
		EntryTime:    time.Now().UTC(),
		EntryFee:     fees.Commission(price*quantity, rp.FeeRate),
		FeeRate:      rp.FeeRate,
		Status:       domain.PositionStatusOpen,
		CurrentPrice: price,
	}
	p.StopLoss = stopLossPrice(side, price, rp.StopLossPct)
	p.TakeProfit = takeProfitPrice(side, price, rp.TakeProfitPct)

	if t.open[strategy] == nil {
		t.open[strategy] = make(map[string]*domain.Position)
	}
	t.open[strategy][p.ID] = p
	t.order[strategy] = append(t.order[strategy], p.ID)
	t.dirty = true

	t.logger.Info("position opened",
		slog.String("position_id", p.ID),
		slog.String("strategy", strategy),
		slog.String("side", string(side)),
		slog.Float64("entry_price", price),
		slog.Float64("quantity", quantity),
	)
	return p, nil
}

// tickLocked refreshes every open position of a strategy at the given price
// and closes the ones whose triggers fire. An empty signalSide means no
// opposing-signal evaluation (HOLD semantics). Caller holds t.mu.
func (t *Tracker) tickLocked(strategy string, price float64, signalSide domain.Side) []domain.ClosureEvent {
	if price <= 0 || len(t.open[strategy]) == 0 {
		return nil
	}

	var events []domain.ClosureEvent
	for _, id := range append([]string(nil), t.order[strategy]...) {
		p, ok := t.open[strategy][id]
		if !ok {
			continue
		}
		opposing := signalSide != "" && p.Side != signalSide
		if reason, hit := p.ShouldClose(price, opposing); hit {
			events = append(events, t.closeLocked(p, price, reason))
		} else {
			p.MarkPrice(price)
			t.dirty = true
		}
	}
	return events
}

// closeLocked settles one open position: closure fields, ledger update, and
// the move from the open set to the history. Caller holds t.mu.
func (t *Tracker) closeLocked(p *domain.Position, price float64, reason domain.CloseReason) domain.ClosureEvent {
	rec := p.Close(price, time.Now().UTC(), reason)

	delete(t.open[p.Strategy], p.ID)
	t.order[p.Strategy] = removeID(t.order[p.Strategy], p.ID)
	t.history = append(t.history, rec)
	newBalance := t.ledger.ApplyRealized(rec.NetPnL)
	t.dirty = true

	t.logger.Info("position closed",
		slog.String("position_id", rec.ID),
		slog.String("strategy", rec.Strategy),
		slog.String("reason", string(reason)),
		slog.Float64("close_price", price),
		slog.Float64("net_pnl", rec.NetPnL),
		slog.Float64("balance", newBalance),
	)

	return domain.ClosureEvent{Record: rec, NewBalance: newBalance}
}

// ClosePosition closes one position by id at the given price. Closing an
// unknown or already-closed id is a logged no-op that leaves the ledger
// untouched.
func (t *Tracker) ClosePosition(ctx context.Context, positionID string, price float64, reason domain.CloseReason) (*domain.ClosureEvent, error) {
	if reason == "" {
		reason = domain.CloseReasonManual
	}

	t.mu.Lock()
	var ev *domain.ClosureEvent
	for _, positions := range t.open {
		if p, ok := positions[positionID]; ok {
			closed := t.closeLocked(p, price, reason)
			ev = &closed
			break
		}
	}
	t.mu.Unlock()

	if ev == nil {
		t.logger.Warn("close requested for unknown position",
			slog.String("position_id", positionID),
		)
		return nil, nil
	}

	t.publishClosures(ctx, []domain.ClosureEvent{*ev})
	return ev, nil
}

// CloseAll closes every open position of a strategy at the given price.
func (t *Tracker) CloseAll(ctx context.Context, strategy string, price float64, reason domain.CloseReason) []domain.ClosureEvent {
	if reason == "" {
		reason = domain.CloseReasonManual
	}

	t.mu.Lock()
	var events []domain.ClosureEvent
	for _, id := range append([]string(nil), t.order[strategy]...) {
		if p, ok := t.open[strategy][id]; ok {
			events = append(events, t.closeLocked(p, price, reason))
		}
	}
	t.mu.Unlock()

	t.publishClosures(ctx, events)
	return events
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func stopLossPrice(side domain.Side, entry, pct float64) *float64 {
	if pct <= 0 {
		return nil
	}
	price := entry * (1 - pct/100)
	if side == domain.SideSell {
		price = entry * (1 + pct/100)
	}
	return &price
}

func takeProfitPrice(side domain.Side, entry, pct float64) *float64 {
	if pct <= 0 {
		return nil
	}
	price := entry * (1 + pct/100)
	if side == domain.SideSell {
		price = entry * (1 - pct/100)
	}
	return &price
}

// ---------------------------------------------------------------------------
// Event publication. Both the bus and the history sink are best-effort:
// failures are logged and never block a settlement.
// ---------------------------------------------------------------------------

func (t *Tracker) publishOpened(ctx context.Context, p *domain.Position) {
	if t.notifier != nil {
		if err := t.notifier.PositionOpened(ctx, *p); err != nil {
			t.logger.WarnContext(ctx, "open notification failed",
				slog.String("position_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if t.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":       "position_opened",
		"position_id": p.ID,
		"strategy":    p.Strategy,
		"side":        p.Side,
		"entry_price": p.EntryPrice,
		"quantity":    p.Quantity,
	})
	if err := t.bus.Publish(ctx, "positions", payload); err != nil {
		t.logger.WarnContext(ctx, "publish open event failed",
			slog.String("position_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (t *Tracker) publishClosures(ctx context.Context, events []domain.ClosureEvent) {
	for _, ev := range events {
		if t.notifier != nil {
			if err := t.notifier.PositionClosed(ctx, ev); err != nil {
				t.logger.WarnContext(ctx, "close notification failed",
					slog.String("position_id", ev.Record.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if t.sink != nil {
			if err := t.sink.Append(ctx, ev.Record); err != nil {
				t.logger.WarnContext(ctx, "history sink append failed",
					slog.String("position_id", ev.Record.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if t.bus == nil {
			continue
		}
		payload, _ := json.Marshal(map[string]any{
			"event":        "position_closed",
			"position_id":  ev.Record.ID,
			"strategy":     ev.Record.Strategy,
			"close_reason": ev.Record.CloseReason,
			"close_price":  ev.Record.ClosePrice,
			"net_pnl":      ev.Record.NetPnL,
			"new_balance":  ev.NewBalance,
		})
		if err := t.bus.Publish(ctx, "positions", payload); err != nil {
			t.logger.WarnContext(ctx, "publish close event failed",
				slog.String("position_id", ev.Record.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(events) > 0 {
		t.publishAccount(ctx)
	}
}

// publishAccount pushes the post-settlement account summary on the bus so
// dashboards track the balance without polling.
func (t *Tracker) publishAccount(ctx context.Context) {
	if t.bus == nil {
		return
	}
	summary := t.ledger.Summary()
	payload, _ := json.Marshal(map[string]any{
		"event":   "account_updated",
		"account": summary,
	})
	if err := t.bus.Publish(ctx, "account", payload); err != nil {
		t.logger.WarnContext(ctx, "publish account event failed",
			slog.String("error", err.Error()),
		)
	}
}

// publishSignal records a non-HOLD signal on the bus.
func (t *Tracker) publishSignal(ctx context.Context, strategy string, signal domain.Signal, price float64) {
	if t.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":    "signal",
		"strategy": strategy,
		"signal":   signal,
		"price":    price,
	})
	if err := t.bus.Publish(ctx, "signals", payload); err != nil {
		t.logger.WarnContext(ctx, "publish signal event failed",
			slog.String("strategy", strategy),
			slog.String("error", err.Error()),
		)
	}
}
