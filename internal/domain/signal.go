package domain

import (
	"strings"
	"time"
)

// Signal is the per-tick instruction emitted by a strategy bot.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// ParseSignal normalises a raw signal string. Unrecognised values degrade to
// HOLD so that a misbehaving strategy can never force a trade; ok reports
// whether the input was a known signal.
func ParseSignal(raw string) (sig Signal, ok bool) {
	switch Signal(strings.ToUpper(strings.TrimSpace(raw))) {
	case SignalBuy:
		return SignalBuy, true
	case SignalSell:
		return SignalSell, true
	case SignalHold, "":
		return SignalHold, true
	default:
		return SignalHold, false
	}
}

// Side is the direction of an open position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Side converts a BUY/SELL signal to a position side. HOLD has no side.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalBuy:
		return SideBuy, true
	case SignalSell:
		return SideSell, true
	default:
		return "", false
	}
}

// Opposes reports whether the signal is a tradeable signal on the other side
// of the given position. HOLD never opposes anything.
func (s Signal) Opposes(side Side) bool {
	switch s {
	case SignalBuy:
		return side == SideSell
	case SignalSell:
		return side == SideBuy
	default:
		return false
	}
}

// TickSignal is one strategy emission consumed by the tracker: the signal
// itself plus the price it was computed at and the bot's confidence.
type TickSignal struct {
	Strategy   string    `json:"strategy"`
	Signal     Signal    `json:"signal"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence,omitempty"`
	Quantity   float64   `json:"quantity,omitempty"`
	At         time.Time `json:"at"`
}
