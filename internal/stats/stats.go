// Package stats derives aggregate trade statistics from the closed-position
// history. Everything here is a pure function over the history slice.
package stats

import "github.com/papertrade/dogebot/internal/domain"

// Compute aggregates the full history. An empty history yields zero values
// (win rate 0, not NaN).
func Compute(history []domain.HistoryRecord) domain.Stats {
	s := domain.Stats{}
	if len(history) == 0 {
		return s
	}

	s.TotalTrades = len(history)
	s.BestTrade = history[0].NetPnL
	s.WorstTrade = history[0].NetPnL

	for _, rec := range history {
		if rec.NetPnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.TotalPnLNet += rec.NetPnL
		s.TotalFees += rec.FeesPaid
		if rec.NetPnL > s.BestTrade {
			s.BestTrade = rec.NetPnL
		}
		if rec.NetPnL < s.WorstTrade {
			s.WorstTrade = rec.NetPnL
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	s.AvgPnLNet = s.TotalPnLNet / float64(s.TotalTrades)
	return s
}

// ComputeByStrategy aggregates the history per strategy plus overall.
func ComputeByStrategy(history []domain.HistoryRecord) domain.StrategyStats {
	byStrategy := make(map[string][]domain.HistoryRecord)
	for _, rec := range history {
		byStrategy[rec.Strategy] = append(byStrategy[rec.Strategy], rec)
	}

	out := domain.StrategyStats{
		Overall:    Compute(history),
		ByStrategy: make(map[string]domain.Stats, len(byStrategy)),
	}
	for name, recs := range byStrategy {
		out.ByStrategy[name] = Compute(recs)
	}
	return out
}
