package domain

import "time"

// Asset identifiers used by the ledger. The tracker trades one pair, so the
// ledger only carries the base and quote assets of that pair.
const (
	AssetUSDT = "USDT"
	AssetDOGE = "DOGE"
)

// AccountSnapshot is the persisted shape of the account ledger (account.json).
type AccountSnapshot struct {
	InitialBalance float64   `json:"initial_balance"`
	CurrentBalance float64   `json:"current_balance"`
	TotalPnL       float64   `json:"total_pnl"`
	USDTBalance    float64   `json:"usdt_balance"`
	DOGEBalance    float64   `json:"doge_balance"`
	USDTLocked     float64   `json:"usdt_locked"`
	DOGELocked     float64   `json:"doge_locked"`
	LastUpdated    time.Time `json:"last_updated"`
}

// AccountSummary is the read-side view of the ledger exposed to reporting.
type AccountSummary struct {
	InitialBalance   float64 `json:"initial_balance"`
	CurrentBalance   float64 `json:"current_balance"`
	TotalPnL         float64 `json:"total_pnl"`
	BalanceChangePct float64 `json:"balance_change_pct"`
	IsProfitable     bool    `json:"is_profitable"`
	USDTBalance      float64 `json:"usdt_balance"`
	DOGEBalance      float64 `json:"doge_balance"`
	USDTLocked       float64 `json:"usdt_locked"`
	DOGELocked       float64 `json:"doge_locked"`
}
