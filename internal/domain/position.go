package domain

import (
	"time"

	"github.com/papertrade/dogebot/internal/fees"
)

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// CloseReason records what triggered an automatic or manual closure.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
	CloseReasonOpposing   CloseReason = "opposing_signal"
	CloseReasonManual     CloseReason = "manual"
)

// Position is one open trade owned by the tracker. Entry fields are set once
// at open; CurrentPrice and UnrealizedPnL are refreshed on every tick. A
// position transitions to CLOSED exactly once, after which it is represented
// by an immutable HistoryRecord and never mutated again.
//
// StopLoss and TakeProfit are nil when the strategy defines no threshold.
type Position struct {
	ID         string         `json:"position_id"`
	Strategy   string         `json:"bot_type"`
	Side       Side           `json:"type"`
	EntryPrice float64        `json:"entry_price"`
	Quantity   float64        `json:"quantity"`
	EntryTime  time.Time      `json:"entry_time"`
	StopLoss   *float64       `json:"stop_loss,omitempty"`
	TakeProfit *float64       `json:"take_profit,omitempty"`
	EntryFee   float64        `json:"entry_fee"`
	FeeRate    float64        `json:"fee_rate"`
	Status     PositionStatus `json:"status"`

	// Tick snapshot, refreshed while OPEN.
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PnL is the gross profit/loss of the position at the given price.
func (p *Position) PnL(price float64) float64 {
	if p.Side == SideSell {
		return (p.EntryPrice - price) * p.Quantity
	}
	return (price - p.EntryPrice) * p.Quantity
}

// PnLPercent is the gross PnL expressed as a percentage of the entry notional.
func (p *Position) PnLPercent(price float64) float64 {
	notional := p.EntryPrice * p.Quantity
	if notional == 0 {
		return 0
	}
	return p.PnL(price) / notional * 100
}

// NetPnL is the gross PnL minus the entry fee and an exit fee estimated
// against the given price.
func (p *Position) NetPnL(price float64) float64 {
	exitFee := fees.Commission(price*p.Quantity, p.FeeRate)
	return p.PnL(price) - p.EntryFee - exitFee
}

// MarkPrice refreshes the tick snapshot of an open position.
func (p *Position) MarkPrice(price float64) {
	p.CurrentPrice = price
	p.UnrealizedPnL = p.PnL(price)
}

// ShouldClose evaluates closure triggers in fixed priority order: stop-loss,
// then take-profit, then opposing signal. Only the first matching reason
// fires, which keeps behavior deterministic when several thresholds are
// crossed in the same tick.
func (p *Position) ShouldClose(price float64, opposingSignal bool) (CloseReason, bool) {
	if p.StopLoss != nil {
		if p.Side == SideBuy && price <= *p.StopLoss {
			return CloseReasonStopLoss, true
		}
		if p.Side == SideSell && price >= *p.StopLoss {
			return CloseReasonStopLoss, true
		}
	}
	if p.TakeProfit != nil {
		if p.Side == SideBuy && price >= *p.TakeProfit {
			return CloseReasonTakeProfit, true
		}
		if p.Side == SideSell && price <= *p.TakeProfit {
			return CloseReasonTakeProfit, true
		}
	}
	if opposingSignal {
		return CloseReasonOpposing, true
	}
	return "", false
}

// Close settles the position at the given price and returns the immutable
// history record. The position itself is marked CLOSED and must not be
// reused afterwards.
func (p *Position) Close(price float64, at time.Time, reason CloseReason) HistoryRecord {
	exitFee := fees.Commission(price*p.Quantity, p.FeeRate)
	gross := p.PnL(price)

	p.Status = PositionStatusClosed
	p.CurrentPrice = price
	p.UnrealizedPnL = 0

	return HistoryRecord{
		ID:              p.ID,
		Strategy:        p.Strategy,
		Side:            p.Side,
		EntryPrice:      p.EntryPrice,
		Quantity:        p.Quantity,
		EntryTime:       p.EntryTime,
		ClosePrice:      price,
		CloseTime:       at,
		CloseReason:     reason,
		PnL:             gross,
		PnLPercent:      p.PnLPercent(price),
		NetPnL:          gross - p.EntryFee - exitFee,
		FeesPaid:        p.EntryFee + exitFee,
		DurationMinutes: at.Sub(p.EntryTime).Minutes(),
	}
}

// HistoryRecord is one closed position, the unit of the append-only trade
// history. Field names follow the persisted history.json shape.
type HistoryRecord struct {
	ID              string      `json:"position_id"`
	Strategy        string      `json:"bot_type"`
	Side            Side        `json:"type"`
	EntryPrice      float64     `json:"entry_price"`
	Quantity        float64     `json:"quantity"`
	EntryTime       time.Time   `json:"entry_time"`
	ClosePrice      float64     `json:"close_price"`
	CloseTime       time.Time   `json:"close_time"`
	CloseReason     CloseReason `json:"close_reason"`
	PnL             float64     `json:"pnl"`
	PnLPercent      float64     `json:"pnl_percentage"`
	NetPnL          float64     `json:"net_pnl"`
	FeesPaid        float64     `json:"fees_paid"`
	DurationMinutes float64     `json:"duration_minutes"`
}

// ClosureEvent is returned by the tracker when a tick closes positions, and
// is also the payload published on the signal bus.
type ClosureEvent struct {
	Record     HistoryRecord `json:"record"`
	NewBalance float64       `json:"new_balance"`
}
