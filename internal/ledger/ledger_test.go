package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/dogebot/internal/domain"
)

func TestApplyRealizedKeepsInvariant(t *testing.T) {
	t.Parallel()

	l := New(1000)

	l.ApplyRealized(12.5)
	l.ApplyRealized(-4.25)
	balance := l.ApplyRealized(0.75)

	snap := l.Snapshot()
	assert.InDelta(t, snap.InitialBalance+snap.TotalPnL, snap.CurrentBalance, 1e-6)
	assert.InDelta(t, 1009.0, balance, 1e-9)
	assert.InDelta(t, 9.0, snap.TotalPnL, 1e-9)
	assert.InDelta(t, 1009.0, snap.USDTBalance, 1e-9)
}

func TestLockFunds(t *testing.T) {
	t.Parallel()

	l := New(100)

	require.True(t, l.LockFunds(domain.AssetUSDT, 40))
	snap := l.Snapshot()
	assert.InDelta(t, 60.0, snap.USDTBalance, 1e-9)
	assert.InDelta(t, 40.0, snap.USDTLocked, 1e-9)

	// Insufficient free balance leaves the ledger untouched.
	assert.False(t, l.LockFunds(domain.AssetUSDT, 70))
	snap = l.Snapshot()
	assert.InDelta(t, 60.0, snap.USDTBalance, 1e-9)
	assert.InDelta(t, 40.0, snap.USDTLocked, 1e-9)

	// Non-positive amounts are rejected.
	assert.False(t, l.LockFunds(domain.AssetUSDT, 0))
	assert.False(t, l.LockFunds(domain.AssetUSDT, -5))
}

func TestUnlockFunds(t *testing.T) {
	t.Parallel()

	l := New(100)
	require.True(t, l.LockFunds(domain.AssetUSDT, 40))

	// Releasing more than locked fails.
	assert.False(t, l.UnlockFunds(domain.AssetUSDT, 50))

	require.True(t, l.UnlockFunds(domain.AssetUSDT, 40))
	snap := l.Snapshot()
	assert.InDelta(t, 100.0, snap.USDTBalance, 1e-9)
	assert.Zero(t, snap.USDTLocked)
}

func TestDeposit(t *testing.T) {
	t.Parallel()

	l := New(100)
	l.Deposit(domain.AssetDOGE, 500)
	l.Deposit(domain.AssetDOGE, -10) // ignored

	snap := l.Snapshot()
	assert.InDelta(t, 500.0, snap.DOGEBalance, 1e-9)
	// Deposits never count as PnL.
	assert.Zero(t, snap.TotalPnL)
}

func TestSummaryChangePct(t *testing.T) {
	t.Parallel()

	l := New(1000)
	l.ApplyRealized(50)

	sum := l.Summary()
	assert.InDelta(t, 5.0, sum.BalanceChangePct, 1e-9)
	assert.True(t, sum.IsProfitable)

	// Zero initial balance must not divide by zero.
	z := New(0)
	z.ApplyRealized(10)
	zsum := z.Summary()
	assert.Zero(t, zsum.BalanceChangePct)
	assert.True(t, zsum.IsProfitable)
}

func TestFromSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	orig := New(1000)
	orig.ApplyRealized(-12.5)
	require.True(t, orig.LockFunds(domain.AssetUSDT, 100))
	orig.Deposit(domain.AssetDOGE, 250)

	restored := FromSnapshot(orig.Snapshot())

	a, b := orig.Snapshot(), restored.Snapshot()
	assert.Equal(t, a, b)
}
