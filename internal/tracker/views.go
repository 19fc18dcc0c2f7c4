package tracker

import (
	"math"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/stats"
)

// PositionInfo returns the most recently opened position of a strategy, for
// legacy single-position callers. ok is false when the strategy holds
// nothing.
func (t *Tracker) PositionInfo(strategy string) (domain.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	order := t.order[strategy]
	for i := len(order) - 1; i >= 0; i-- {
		if p, found := t.open[strategy][order[i]]; found {
			return *p, true
		}
	}
	return domain.Position{}, false
}

// OpenPositions returns a strategy's open positions in insertion order.
func (t *Tracker) OpenPositions(strategy string) []domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openPositionsLocked(strategy)
}

func (t *Tracker) openPositionsLocked(strategy string) []domain.Position {
	out := make([]domain.Position, 0, len(t.open[strategy]))
	for _, id := range t.order[strategy] {
		if p, ok := t.open[strategy][id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// AllOpenPositions returns every strategy's open positions.
func (t *Tracker) AllOpenPositions() map[string][]domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]domain.Position, len(t.open))
	for strategy, positions := range t.open {
		if len(positions) == 0 {
			continue
		}
		out[strategy] = t.openPositionsLocked(strategy)
	}
	return out
}

// LastSignals returns the most recent signal seen per strategy.
func (t *Tracker) LastSignals() map[string]domain.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]domain.Signal, len(t.lastSig))
	for k, v := range t.lastSig {
		out[k] = v
	}
	return out
}

// History returns one page of the trade history in closure order. Page
// numbering starts at 1; invalid page or pageSize values are clamped.
func (t *Tracker) History(page, pageSize int) domain.HistoryPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	total := len(t.history)
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	// Multiplying first would overflow for huge page values, so pages past
	// the end resolve to an empty slice before any arithmetic.
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := min(start+pageSize, total)

	items := make([]domain.HistoryRecord, end-start)
	copy(items, t.history[start:end])

	return domain.HistoryPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// RecentHistory returns up to limit most recent closures, newest first.
func (t *Tracker) RecentHistory(limit int) []domain.HistoryRecord {
	if limit <= 0 {
		limit = 20
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.history)
	if limit > n {
		limit = n
	}
	out := make([]domain.HistoryRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, t.history[i])
	}
	return out
}

// Stats aggregates the full trade history.
func (t *Tracker) Stats() domain.Stats {
	t.mu.Lock()
	history := append([]domain.HistoryRecord(nil), t.history...)
	t.mu.Unlock()
	return stats.Compute(history)
}

// StatsByStrategy aggregates the history per strategy plus overall.
func (t *Tracker) StatsByStrategy() domain.StrategyStats {
	t.mu.Lock()
	history := append([]domain.HistoryRecord(nil), t.history...)
	t.mu.Unlock()
	return stats.ComputeByStrategy(history)
}

// Account returns the current ledger summary.
func (t *Tracker) Account() domain.AccountSummary {
	return t.ledger.Summary()
}

// LockFunds reserves free balance on the ledger for an in-flight order.
func (t *Tracker) LockFunds(asset string, amount float64) bool {
	if ok := t.ledger.LockFunds(asset, amount); !ok {
		return false
	}
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
	return true
}

// UnlockFunds releases a reservation made with LockFunds.
func (t *Tracker) UnlockFunds(asset string, amount float64) bool {
	if ok := t.ledger.UnlockFunds(asset, amount); !ok {
		return false
	}
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
	return true
}

// SetBotActive flips the per-strategy active flag consumed by the bot runner.
func (t *Tracker) SetBotActive(strategy string, active bool) {
	t.mu.Lock()
	t.botOn[strategy] = active
	t.dirty = true
	t.mu.Unlock()
}

// BotActive reports a strategy's active flag. Strategies never toggled
// default to inactive.
func (t *Tracker) BotActive(strategy string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.botOn[strategy]
}

// BotStatus returns the full strategy -> active mapping.
func (t *Tracker) BotStatus() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]bool, len(t.botOn))
	for k, v := range t.botOn {
		out[k] = v
	}
	return out
}

// Overview is the composite read-side view consumed by the reporting API.
type Overview struct {
	OpenPositions map[string][]domain.Position `json:"open_positions"`
	LastSignals   map[string]domain.Signal     `json:"last_signals"`
	BotStatus     map[string]bool              `json:"bot_status"`
	Account       domain.AccountSummary        `json:"account"`
	Stats         domain.StrategyStats         `json:"stats"`
	RecentTrades  []domain.HistoryRecord       `json:"recent_trades"`
}

// Overview assembles the composite reporting view in one pass.
func (t *Tracker) Overview() Overview {
	return Overview{
		OpenPositions: t.AllOpenPositions(),
		LastSignals:   t.LastSignals(),
		BotStatus:     t.BotStatus(),
		Account:       t.Account(),
		Stats:         t.StatsByStrategy(),
		RecentTrades:  t.RecentHistory(20),
	}
}
