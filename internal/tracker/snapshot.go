package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/papertrade/dogebot/internal/domain"
)

// SaveSnapshot persists the account, history, open positions, and bot flags
// as one logical snapshot. A failed write is retried once; a second failure
// is surfaced to the caller as a warning-level error, never a fatal one.
func (t *Tracker) SaveSnapshot(ctx context.Context) error {
	t.mu.Lock()
	snap := domain.TrackerSnapshot{
		Account:   t.ledger.Snapshot(),
		History:   append([]domain.HistoryRecord(nil), t.history...),
		Open:      make(map[string]map[string]domain.Position, len(t.open)),
		BotStatus: make(map[string]bool, len(t.botOn)),
	}
	for strategy, positions := range t.open {
		if len(positions) == 0 {
			continue
		}
		m := make(map[string]domain.Position, len(positions))
		for id, p := range positions {
			m[id] = *p
		}
		snap.Open[strategy] = m
	}
	for k, v := range t.botOn {
		snap.BotStatus[k] = v
	}
	t.dirty = false
	t.mu.Unlock()

	err := t.store.Save(ctx, snap)
	if err != nil {
		t.logger.WarnContext(ctx, "snapshot save failed, retrying",
			slog.String("error", err.Error()),
		)
		err = t.store.Save(ctx, snap)
	}
	if err != nil {
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
		return fmt.Errorf("tracker: save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores tracker state from the snapshot store, replacing
// whatever the tracker currently holds. A snapshot without a persisted
// account (zero LastUpdated) keeps the ledger the tracker was constructed
// with.
func (t *Tracker) LoadSnapshot(ctx context.Context) error {
	snap, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("tracker: load snapshot: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Restore in place: the ledger pointer is shared with readers that do
	// not hold t.mu, so it must never be reassigned.
	if !snap.Account.LastUpdated.IsZero() {
		t.ledger.Restore(snap.Account)
	}

	t.history = append([]domain.HistoryRecord(nil), snap.History...)

	t.open = make(map[string]map[string]*domain.Position, len(snap.Open))
	t.order = make(map[string][]string, len(snap.Open))
	for strategy, positions := range snap.Open {
		t.open[strategy] = make(map[string]*domain.Position, len(positions))
		for id, pos := range positions {
			p := pos
			p.Status = domain.PositionStatusOpen
			t.open[strategy][id] = &p
			t.order[strategy] = append(t.order[strategy], id)
		}
		// Deterministic order across restarts: persisted maps lose insertion
		// order, so rebuild it from entry time.
		order := t.order[strategy]
		for i := 1; i < len(order); i++ {
			for j := i; j > 0; j-- {
				a, b := t.open[strategy][order[j-1]], t.open[strategy][order[j]]
				if a.EntryTime.After(b.EntryTime) {
					order[j-1], order[j] = order[j], order[j-1]
				} else {
					break
				}
			}
		}
	}

	t.botOn = make(map[string]bool, len(snap.BotStatus))
	for k, v := range snap.BotStatus {
		t.botOn[k] = v
	}
	t.dirty = false

	t.logger.InfoContext(ctx, "snapshot loaded",
		slog.Int("history", len(t.history)),
		slog.Int("strategies_with_positions", len(t.open)),
	)
	return nil
}

// Run flushes dirty state to the snapshot store every interval until the
// context is cancelled, then attempts one final flush. In-memory state stays
// the source of truth between flushes; a crash loses at most one interval of
// updates, which the shutdown log makes visible.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			dirty := t.dirty
			t.mu.Unlock()
			if dirty {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := t.SaveSnapshot(flushCtx); err != nil {
					t.logger.Error("final snapshot flush failed, unflushed updates lost",
						slog.String("error", err.Error()),
					)
				}
			}
			return ctx.Err()

		case <-ticker.C:
			t.mu.Lock()
			dirty := t.dirty
			t.mu.Unlock()
			if !dirty {
				continue
			}
			if err := t.SaveSnapshot(ctx); err != nil {
				t.logger.WarnContext(ctx, "periodic snapshot flush failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
