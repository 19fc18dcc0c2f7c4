package domain

// Stats is the aggregate view derived from the trade history. It is
// recomputed on demand from the full history rather than maintained
// incrementally; reporting queries pay a linear scan.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnLNet float64 `json:"total_pnl_net"`
	TotalFees   float64 `json:"total_fees"`
	BestTrade   float64 `json:"best_trade"`
	WorstTrade  float64 `json:"worst_trade"`
	AvgPnLNet   float64 `json:"avg_pnl_net"`
}

// StrategyStats is the per-strategy breakdown plus the overall aggregate.
type StrategyStats struct {
	Overall    Stats            `json:"overall"`
	ByStrategy map[string]Stats `json:"by_strategy"`
}
