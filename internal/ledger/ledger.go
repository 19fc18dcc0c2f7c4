// Package ledger tracks the paper-trading account: initial and current
// balance, the running realized PnL aggregate, and per-asset free/locked
// funds. The invariant current == initial + total_pnl holds after every
// settlement.
package ledger

import (
	"sync"
	"time"

	"github.com/papertrade/dogebot/internal/domain"
)

// Ledger is the single mutable account owned by the tracker. All methods are
// safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	initial  float64
	current  float64
	totalPnL float64
	free     map[string]float64
	locked   map[string]float64
	updated  time.Time
}

// New creates a fresh ledger funded with initialBalance USDT.
func New(initialBalance float64) *Ledger {
	return &Ledger{
		initial: initialBalance,
		current: initialBalance,
		free:    map[string]float64{domain.AssetUSDT: initialBalance},
		locked:  map[string]float64{},
		updated: time.Now().UTC(),
	}
}

// FromSnapshot restores a ledger from a persisted account snapshot.
func FromSnapshot(snap domain.AccountSnapshot) *Ledger {
	l := &Ledger{}
	l.Restore(snap)
	return l
}

// Restore replaces the ledger's state with a persisted account snapshot.
// The ledger value itself is never swapped, so every holder of the pointer
// observes the restored state.
func (l *Ledger) Restore(snap domain.AccountSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.initial = snap.InitialBalance
	l.current = snap.CurrentBalance
	l.totalPnL = snap.TotalPnL
	l.free = map[string]float64{
		domain.AssetUSDT: snap.USDTBalance,
		domain.AssetDOGE: snap.DOGEBalance,
	}
	l.locked = map[string]float64{
		domain.AssetUSDT: snap.USDTLocked,
		domain.AssetDOGE: snap.DOGELocked,
	}
	l.updated = snap.LastUpdated
}

// ApplyRealized settles the net PnL of one closed position into the account
// and returns the new current balance.
func (l *Ledger) ApplyRealized(netPnL float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current += netPnL
	l.totalPnL += netPnL
	l.free[domain.AssetUSDT] += netPnL
	l.updated = time.Now().UTC()
	return l.current
}

// LockFunds moves amount from the asset's free balance to its locked balance.
// It returns false, leaving the ledger untouched, when the free balance does
// not cover the request.
func (l *Ledger) LockFunds(asset string, amount float64) bool {
	if amount <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.free[asset] < amount {
		return false
	}
	l.free[asset] -= amount
	l.locked[asset] += amount
	l.updated = time.Now().UTC()
	return true
}

// UnlockFunds releases locked funds back to the free balance. Releasing more
// than is locked returns false and leaves the ledger untouched.
func (l *Ledger) UnlockFunds(asset string, amount float64) bool {
	if amount <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked[asset] < amount {
		return false
	}
	l.locked[asset] -= amount
	l.free[asset] += amount
	l.updated = time.Now().UTC()
	return true
}

// Deposit credits the asset's free balance without touching PnL. Used for
// balance migrations and manual top-ups.
func (l *Ledger) Deposit(asset string, amount float64) {
	if amount <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.free[asset] += amount
	l.updated = time.Now().UTC()
}

// Snapshot returns the persisted shape of the ledger.
func (l *Ledger) Snapshot() domain.AccountSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return domain.AccountSnapshot{
		InitialBalance: l.initial,
		CurrentBalance: l.current,
		TotalPnL:       l.totalPnL,
		USDTBalance:    l.free[domain.AssetUSDT],
		DOGEBalance:    l.free[domain.AssetDOGE],
		USDTLocked:     l.locked[domain.AssetUSDT],
		DOGELocked:     l.locked[domain.AssetDOGE],
		LastUpdated:    l.updated,
	}
}

// Summary returns the reporting view of the account. The balance change
// percentage guards against a zero initial balance.
func (l *Ledger) Summary() domain.AccountSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	changePct := 0.0
	if l.initial != 0 {
		changePct = (l.current - l.initial) / l.initial * 100
	}

	return domain.AccountSummary{
		InitialBalance:   l.initial,
		CurrentBalance:   l.current,
		TotalPnL:         l.totalPnL,
		BalanceChangePct: changePct,
		IsProfitable:     l.totalPnL > 0,
		USDTBalance:      l.free[domain.AssetUSDT],
		DOGEBalance:      l.free[domain.AssetDOGE],
		USDTLocked:       l.locked[domain.AssetUSDT],
		DOGELocked:       l.locked[domain.AssetDOGE],
	}
}
