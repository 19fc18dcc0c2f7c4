package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papertrade/dogebot/internal/domain"
)

// HistoryStore mirrors closed positions into the position_history table. It
// implements domain.HistorySink on the write side and the archiver's
// time-ranged read interface on the read side.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

const historySelectCols = `position_id, bot_type, side, entry_price, quantity,
	entry_time, close_price, close_time, close_reason,
	pnl, pnl_percentage, net_pnl, fees_paid, duration_minutes`

func scanHistoryRows(rows pgx.Rows) ([]domain.HistoryRecord, error) {
	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var side, reason string

		if err := rows.Scan(
			&rec.ID, &rec.Strategy, &side,
			&rec.EntryPrice, &rec.Quantity, &rec.EntryTime,
			&rec.ClosePrice, &rec.CloseTime, &reason,
			&rec.PnL, &rec.PnLPercent, &rec.NetPnL,
			&rec.FeesPaid, &rec.DurationMinutes,
		); err != nil {
			return nil, err
		}
		rec.Side = domain.Side(side)
		rec.CloseReason = domain.CloseReason(reason)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Append inserts one closed position. Re-appending the same position id is a
// no-op, which makes tracker retries safe.
func (s *HistoryStore) Append(ctx context.Context, rec domain.HistoryRecord) error {
	const query = `
		INSERT INTO position_history (
			position_id, bot_type, side, entry_price, quantity,
			entry_time, close_price, close_time, close_reason,
			pnl, pnl_percentage, net_pnl, fees_paid, duration_minutes
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
		ON CONFLICT (position_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Strategy, string(rec.Side), rec.EntryPrice, rec.Quantity,
		rec.EntryTime, rec.ClosePrice, rec.CloseTime, string(rec.CloseReason),
		rec.PnL, rec.PnLPercent, rec.NetPnL, rec.FeesPaid, rec.DurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("postgres: append history %s: %w", rec.ID, err)
	}
	return nil
}

// ListBefore returns every record closed strictly before the cutoff. The
// archiver uses this to select rows old enough to move to object storage.
func (s *HistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.HistoryRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM position_history WHERE close_time < $1 ORDER BY close_time ASC`,
		historySelectCols,
	)

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before %s: %w", before, err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// Count returns the total number of mirrored records.
func (s *HistoryStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM position_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count history: %w", err)
	}
	return n, nil
}
