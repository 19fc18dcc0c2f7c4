package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/ledger"
	"github.com/papertrade/dogebot/internal/store/jsonfile"
	"github.com/papertrade/dogebot/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(t *testing.T) *tracker.Tracker {
	t.Helper()

	store, err := jsonfile.New(t.TempDir(), testLogger())
	require.NoError(t, err)

	opts := tracker.Options{
		Risk: map[string]tracker.RiskParams{
			"conservative": {StopLossPct: 2, TakeProfitPct: 3, FeeRate: 0.00075, Quantity: 100},
		},
		Default: tracker.RiskParams{FeeRate: 0.00075, Quantity: 100},
	}
	return tracker.New(opts, ledger.New(1000), store, nil, nil, testLogger())
}

// staticSource always emits the same signal.
type staticSource struct {
	signal domain.Signal
	err    error
}

func (s staticSource) Evaluate(ctx context.Context, strategy string, price float64) (domain.Signal, error) {
	return s.signal, s.err
}

// staticPrices is a PriceSource pinned to one price.
type staticPrices struct {
	price float64
	err   error
}

func (s staticPrices) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, s.err
}

// memPriceCache is an in-memory PriceCache for tests.
type memPriceCache struct {
	price float64
	ts    time.Time
	set   bool
}

func (m *memPriceCache) SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	m.price, m.ts, m.set = price, ts, true
	return nil
}

func (m *memPriceCache) GetPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	if !m.set {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return m.price, m.ts, nil
}

func runOneTick(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunnerTickOpensPosition(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.SetBotActive("conservative", true)

	r := NewRunner(tr, staticSource{signal: domain.SignalBuy}, staticPrices{price: 0.89},
		nil, "DOGEUSDT", []string{"conservative"}, 10*time.Millisecond, testLogger())
	runOneTick(t, r)

	open := tr.OpenPositions("conservative")
	require.NotEmpty(t, open)
	assert.InDelta(t, 0.89, open[0].EntryPrice, 1e-9)
}

func TestRunnerSkipsInactiveBot(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.SetBotActive("conservative", false)

	r := NewRunner(tr, staticSource{signal: domain.SignalBuy}, staticPrices{price: 0.89},
		nil, "DOGEUSDT", []string{"conservative"}, 10*time.Millisecond, testLogger())
	runOneTick(t, r)

	assert.Empty(t, tr.OpenPositions("conservative"))
}

func TestRunnerEvaluationFailureHolds(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.SetBotActive("conservative", true)

	r := NewRunner(tr, staticSource{err: errors.New("strategy offline")}, staticPrices{price: 0.89},
		nil, "DOGEUSDT", []string{"conservative"}, 10*time.Millisecond, testLogger())
	runOneTick(t, r)

	// A failed evaluation degrades to HOLD, never to a trade.
	assert.Empty(t, tr.OpenPositions("conservative"))
	assert.Equal(t, domain.SignalHold, tr.LastSignals()["conservative"])
}

func TestRunnerNoPriceSkipsTick(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.SetBotActive("conservative", true)

	r := NewRunner(tr, staticSource{signal: domain.SignalBuy},
		staticPrices{err: domain.ErrNetwork},
		nil, "DOGEUSDT", []string{"conservative"}, 10*time.Millisecond, testLogger())
	runOneTick(t, r)

	assert.Empty(t, tr.OpenPositions("conservative"))
	assert.Empty(t, tr.LastSignals())
}

func TestRunnerPrefersFreshCachedPrice(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.SetBotActive("conservative", true)

	cache := &memPriceCache{}
	require.NoError(t, cache.SetPrice(context.Background(), "DOGEUSDT", 0.95, time.Now()))

	// REST would answer 0.89; the fresh cached 0.95 must win. A single tick
	// is driven directly so the cache entry cannot age past the freshness
	// window while the loop spins.
	r := NewRunner(tr, staticSource{signal: domain.SignalBuy}, staticPrices{price: 0.89},
		cache, "DOGEUSDT", []string{"conservative"}, 10*time.Millisecond, testLogger())
	r.tick(context.Background())

	open := tr.OpenPositions("conservative")
	require.NotEmpty(t, open)
	assert.InDelta(t, 0.95, open[0].EntryPrice, 1e-9)
}

func TestRunnerStaleCacheFallsBackToREST(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.SetBotActive("conservative", true)

	cache := &memPriceCache{}
	require.NoError(t, cache.SetPrice(context.Background(), "DOGEUSDT", 0.95, time.Now().Add(-time.Hour)))

	r := NewRunner(tr, staticSource{signal: domain.SignalBuy}, staticPrices{price: 0.89},
		cache, "DOGEUSDT", []string{"conservative"}, 10*time.Millisecond, testLogger())
	runOneTick(t, r)

	open := tr.OpenPositions("conservative")
	require.NotEmpty(t, open)
	assert.InDelta(t, 0.89, open[0].EntryPrice, 1e-9)
}
