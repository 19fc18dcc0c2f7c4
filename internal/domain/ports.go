package domain

import (
	"context"
	"io"
	"time"
)

// TrackerSnapshot is one logical snapshot of all tracker-owned state. The
// store splits it across files (or tables) but the tracker always saves and
// loads it wholesale.
type TrackerSnapshot struct {
	Account   AccountSnapshot
	History   []HistoryRecord
	Open      map[string]map[string]Position // strategy -> position_id -> position
	BotStatus map[string]bool
}

// SnapshotStore persists tracker snapshots. Load must return documented
// defaults (empty history, fresh account) in place of malformed state rather
// than failing.
type SnapshotStore interface {
	Save(ctx context.Context, snap TrackerSnapshot) error
	Load(ctx context.Context) (TrackerSnapshot, error)
}

// HistorySink receives closed positions as they settle. Implementations are
// mirrors (Postgres, message streams); the snapshot store stays the system
// of record and sink failures must never block a closure.
type HistorySink interface {
	Append(ctx context.Context, rec HistoryRecord) error
}

// HistoryPage is the paginated read contract over the trade history.
type HistoryPage struct {
	Items      []HistoryRecord `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// PriceCache caches the latest observed price per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// SignalBus is a lightweight pub/sub used to fan events out to the WebSocket
// hub and any external consumer.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// PriceSource produces the current market price for a symbol. Failures wrap
// ErrNetwork so callers can distinguish connectivity from bad input.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// SignalSource evaluates a strategy at the current price. The strategies
// themselves live outside this system; the tracker only consumes their
// BUY/SELL/HOLD output.
type SignalSource interface {
	Evaluate(ctx context.Context, strategy string, price float64) (Signal, error)
}

// TradeNotifier receives position lifecycle events for operator alerts.
// Implementations must tolerate being called concurrently.
type TradeNotifier interface {
	PositionOpened(ctx context.Context, p Position) error
	PositionClosed(ctx context.Context, ev ClosureEvent) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads a blob to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader downloads a blob from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
