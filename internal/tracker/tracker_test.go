package tracker

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/ledger"
	"github.com/papertrade/dogebot/internal/store/jsonfile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(t *testing.T, opts Options) *Tracker {
	t.Helper()

	store, err := jsonfile.New(t.TempDir(), testLogger())
	require.NoError(t, err)

	return New(opts, ledger.New(1000), store, nil, nil, testLogger())
}

func defaultOpts() Options {
	return Options{
		Risk: map[string]RiskParams{
			"conservative": {StopLossPct: 2, TakeProfitPct: 1.5, FeeRate: 0.00075, Quantity: 100},
			"aggressive":   {StopLossPct: 5, TakeProfitPct: 8, FeeRate: 0.00075, Quantity: 100},
		},
		Default: RiskParams{FeeRate: 0.00075, Quantity: 100},
	}
}

func TestBuySignalOpensPosition(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	events, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	open := tr.OpenPositions("conservative")
	require.Len(t, open, 1)
	p := open[0]
	assert.Equal(t, domain.SideBuy, p.Side)
	assert.InDelta(t, 0.89, p.EntryPrice, 1e-9)
	assert.InDelta(t, 100.0, p.Quantity, 1e-9)
	assert.InDelta(t, 0.06675, p.EntryFee, 1e-9)
	require.NotNil(t, p.StopLoss)
	require.NotNil(t, p.TakeProfit)
	assert.InDelta(t, 0.89*0.98, *p.StopLoss, 1e-9)
	assert.InDelta(t, 0.89*1.015, *p.TakeProfit, 1e-9)
}

func TestTakeProfitScenario(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)

	// HOLD tick at 0.9050 crosses the 1.5% take-profit.
	events, err := tr.Update(ctx, "conservative", domain.SignalHold, 0.9050, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	rec := events[0].Record
	assert.Equal(t, domain.CloseReasonTakeProfit, rec.CloseReason)

	entryFee := 0.89 * 100 * 0.00075
	exitFee := 0.9050 * 100 * 0.00075
	wantNet := (0.9050-0.89)*100 - entryFee - exitFee
	assert.InDelta(t, wantNet, rec.NetPnL, 1e-9)

	assert.Empty(t, tr.OpenPositions("conservative"))
	assert.Equal(t, 1, tr.History(1, 10).Total)

	acct := tr.Account()
	assert.InDelta(t, acct.InitialBalance+acct.TotalPnL, acct.CurrentBalance, 1e-6)
	assert.InDelta(t, wantNet, acct.TotalPnL, 1e-9)
}

func TestStopLossPrecedence(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	// Short at 1.00: 2% stop-loss sits at 1.02.
	_, err := tr.Update(ctx, "conservative", domain.SignalSell, 1.00, 0)
	require.NoError(t, err)

	// Price spikes through the stop-loss while the opposing BUY signal
	// also fires: the stop-loss reason must win.
	events, err := tr.Update(ctx, "conservative", domain.SignalBuy, 1.03, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.CloseReasonStopLoss, events[0].Record.CloseReason)
}

func TestOpposingSignalClosesPosition(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)

	// SELL at a price inside both thresholds closes on the opposing signal.
	events, err := tr.Update(ctx, "conservative", domain.SignalSell, 0.893, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.CloseReasonOpposing, events[0].Record.CloseReason)

	// ReverseOnSignal is off, so no new SELL position was opened.
	assert.Empty(t, tr.OpenPositions("conservative"))
}

func TestReverseOnSignalOpensOpposite(t *testing.T) {
	t.Parallel()

	opts := defaultOpts()
	opts.ReverseOnSignal = true
	tr := newTestTracker(t, opts)
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)

	events, err := tr.Update(ctx, "conservative", domain.SignalSell, 0.893, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	open := tr.OpenPositions("conservative")
	require.Len(t, open, 1)
	assert.Equal(t, domain.SideSell, open[0].Side)
	assert.InDelta(t, 0.893, open[0].EntryPrice, 1e-9)
}

func TestSameSideSignalRefreshesNotStacks(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)
	first := tr.OpenPositions("conservative")[0]

	// Second BUY refreshes the mark price but opens nothing new.
	_, err = tr.Update(ctx, "conservative", domain.SignalBuy, 0.895, 0)
	require.NoError(t, err)

	open := tr.OpenPositions("conservative")
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)
	assert.InDelta(t, 0.895, open[0].CurrentPrice, 1e-9)

	// Explicit Open bypasses the refresh policy and stacks.
	_, err = tr.Open(ctx, "conservative", domain.SideBuy, 0.90, 50)
	require.NoError(t, err)
	assert.Len(t, tr.OpenPositions("conservative"), 2)
}

func TestZeroPriceOrQuantityRejected(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0, 100)
	assert.ErrorIs(t, err, domain.ErrZeroPriceOrQuantity)

	_, err = tr.Open(ctx, "conservative", domain.SideBuy, 0.89, -5)
	assert.ErrorIs(t, err, domain.ErrZeroPriceOrQuantity)

	assert.Empty(t, tr.OpenPositions("conservative"))
}

func TestIdempotentClose(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)
	id := tr.OpenPositions("conservative")[0].ID

	ev, err := tr.ClosePosition(ctx, id, 0.90, domain.CloseReasonManual)
	require.NoError(t, err)
	require.NotNil(t, ev)

	before := tr.Account()

	// Second close of the same id is a no-op.
	ev, err = tr.ClosePosition(ctx, id, 0.95, domain.CloseReasonManual)
	require.NoError(t, err)
	assert.Nil(t, ev)

	// Unknown id is a no-op too.
	ev, err = tr.ClosePosition(ctx, "no-such-position", 0.95, "")
	require.NoError(t, err)
	assert.Nil(t, ev)

	assert.Equal(t, before, tr.Account())
	assert.Equal(t, 1, tr.History(1, 10).Total)
}

func TestTwoStrategiesAreIsolated(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)
	_, err = tr.Update(ctx, "aggressive", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)

	events := tr.CloseAll(ctx, "conservative", 0.90, "")
	require.Len(t, events, 1)

	assert.Empty(t, tr.OpenPositions("conservative"))
	assert.Len(t, tr.OpenPositions("aggressive"), 1)

	acct := tr.Account()
	assert.InDelta(t, events[0].Record.NetPnL, acct.TotalPnL, 1e-9)
	assert.InDelta(t, acct.InitialBalance+acct.TotalPnL, acct.CurrentBalance, 1e-6)
}

func TestHistoryPagination(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	// 25 closures via explicit open/close pairs.
	for i := 0; i < 25; i++ {
		p, err := tr.Open(ctx, "conservative", domain.SideBuy, 1.00, 10)
		require.NoError(t, err)
		_, err = tr.ClosePosition(ctx, p.ID, 1.01, domain.CloseReasonManual)
		require.NoError(t, err)
	}

	page := tr.History(2, 10)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 10)

	// Page 2 holds items 11-20 in closure order.
	full := tr.History(1, 25).Items
	assert.Equal(t, full[10], page.Items[0])
	assert.Equal(t, full[19], page.Items[9])

	// Past-the-end pages are empty but carry the totals.
	last := tr.History(4, 10)
	assert.Empty(t, last.Items)
	assert.Equal(t, 3, last.TotalPages)
}

func TestHistoryPageNumberOverflow(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	p, err := tr.Open(ctx, "conservative", domain.SideBuy, 1.00, 10)
	require.NoError(t, err)
	_, err = tr.ClosePosition(ctx, p.ID, 1.01, domain.CloseReasonManual)
	require.NoError(t, err)

	// A page number near MaxInt must not overflow the start index; it is
	// just another past-the-end page.
	page := tr.History(math.MaxInt, 200)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	page = tr.History(math.MaxInt, 1)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Total)
}

func TestPositionInfoReturnsMostRecentOpen(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, ok := tr.PositionInfo("conservative")
	assert.False(t, ok)

	first, err := tr.Open(ctx, "conservative", domain.SideBuy, 0.89, 10)
	require.NoError(t, err)
	second, err := tr.Open(ctx, "conservative", domain.SideBuy, 0.91, 10)
	require.NoError(t, err)

	p, ok := tr.PositionInfo("conservative")
	require.True(t, ok)
	assert.Equal(t, second.ID, p.ID)

	// Closing the newest position falls back to the older one.
	_, err = tr.ClosePosition(ctx, second.ID, 0.92, domain.CloseReasonManual)
	require.NoError(t, err)
	p, ok = tr.PositionInfo("conservative")
	require.True(t, ok)
	assert.Equal(t, first.ID, p.ID)
}

func TestStatsMatchesOverallBreakdown(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	p, err := tr.Open(ctx, "conservative", domain.SideBuy, 1.00, 100)
	require.NoError(t, err)
	_, err = tr.ClosePosition(ctx, p.ID, 1.05, domain.CloseReasonTakeProfit)
	require.NoError(t, err)
	p, err = tr.Open(ctx, "aggressive", domain.SideBuy, 1.00, 100)
	require.NoError(t, err)
	_, err = tr.ClosePosition(ctx, p.ID, 0.98, domain.CloseReasonStopLoss)
	require.NoError(t, err)

	overall := tr.Stats()
	assert.Equal(t, 2, overall.TotalTrades)
	assert.Equal(t, 1, overall.Wins)
	assert.Equal(t, tr.StatsByStrategy().Overall, overall)
}

func TestHoldOnEmptyStrategyIsNoOp(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	events, err := tr.Update(ctx, "conservative", domain.SignalHold, 0.89, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, tr.OpenPositions("conservative"))
	assert.Equal(t, domain.SignalHold, tr.LastSignals()["conservative"])
}

func TestAccountInvariantOverManyClosures(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	prices := []float64{1.01, 0.98, 1.05, 0.97, 1.002, 0.999}
	var sum float64
	for _, px := range prices {
		p, err := tr.Open(ctx, "aggressive", domain.SideBuy, 1.00, 100)
		require.NoError(t, err)
		ev, err := tr.ClosePosition(ctx, p.ID, px, domain.CloseReasonManual)
		require.NoError(t, err)
		require.NotNil(t, ev)
		sum += ev.Record.NetPnL
	}

	acct := tr.Account()
	assert.InDelta(t, acct.InitialBalance+sum, acct.CurrentBalance, 1e-6)
	assert.InDelta(t, sum, acct.TotalPnL, 1e-6)
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := jsonfile.New(dir, testLogger())
	require.NoError(t, err)

	tr := New(defaultOpts(), ledger.New(1000), store, nil, nil, testLogger())
	ctx := context.Background()

	_, err = tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)
	p, err := tr.Open(ctx, "aggressive", domain.SideSell, 1.10, 50)
	require.NoError(t, err)
	_, err = tr.ClosePosition(ctx, p.ID, 1.05, "")
	require.NoError(t, err)
	tr.SetBotActive("conservative", true)

	require.NoError(t, tr.SaveSnapshot(ctx))

	// A fresh tracker over the same directory sees the same world.
	restored := New(defaultOpts(), ledger.New(1000), store, nil, nil, testLogger())
	require.NoError(t, restored.LoadSnapshot(ctx))

	assert.Equal(t, tr.OpenPositions("conservative"), restored.OpenPositions("conservative"))
	assert.Equal(t, tr.History(1, 50), restored.History(1, 50))
	assert.Equal(t, tr.Account(), restored.Account())
	assert.True(t, restored.BotActive("conservative"))
}

func TestLoadSnapshotRestoresLedgerInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := jsonfile.New(dir, testLogger())
	require.NoError(t, err)

	tr := New(defaultOpts(), ledger.New(1000), store, nil, nil, testLogger())
	ctx := context.Background()

	p, err := tr.Open(ctx, "conservative", domain.SideBuy, 1.00, 100)
	require.NoError(t, err)
	_, err = tr.ClosePosition(ctx, p.ID, 1.05, domain.CloseReasonTakeProfit)
	require.NoError(t, err)
	require.NoError(t, tr.SaveSnapshot(ctx))

	// The ledger handed to the tracker must be the one load restores into:
	// readers holding the pointer see the persisted balances afterwards.
	led := ledger.New(0)
	restored := New(defaultOpts(), led, store, nil, nil, testLogger())
	require.NoError(t, restored.LoadSnapshot(ctx))

	assert.Equal(t, restored.Account(), led.Summary())
	assert.InDelta(t, 1000, led.Summary().InitialBalance, 1e-9)
}

func TestOverview(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, defaultOpts())
	ctx := context.Background()

	_, err := tr.Update(ctx, "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)
	p, err := tr.Open(ctx, "aggressive", domain.SideBuy, 1.00, 10)
	require.NoError(t, err)
	_, err = tr.ClosePosition(ctx, p.ID, 1.02, "")
	require.NoError(t, err)

	ov := tr.Overview()
	assert.Len(t, ov.OpenPositions["conservative"], 1)
	assert.Equal(t, domain.SignalBuy, ov.LastSignals["conservative"])
	assert.Equal(t, 1, ov.Stats.Overall.TotalTrades)
	assert.Len(t, ov.RecentTrades, 1)
	assert.InDelta(t, ov.Account.InitialBalance+ov.Account.TotalPnL, ov.Account.CurrentBalance, 1e-6)
}
