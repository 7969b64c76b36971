package backtest

import (
	"math"

	"github.com/wonny/kabu/internal/contracts"
)

// Summarize reduces trades to count, total profit, win rate, mean return and Sharpe.
// Sharpe is mean(return_pct) / population stddev(return_pct) and 0 when the stddev is 0.
// No trades gives the zero Summary.
func Summarize(trades []contracts.Trade) contracts.Summary {
	var s contracts.Summary
	if len(trades) == 0 {
		return s
	}

	wins := 0
	returns := make([]float64, len(trades))
	for i, t := range trades {
		s.TotalProfit += t.Profit
		if t.IsWin() {
			wins++
		}
		returns[i] = t.ReturnPct
	}

	n := float64(len(trades))
	s.Trades = len(trades)
	s.WinRate = float64(wins) / n
	s.AvgReturnPct = mean(returns)
	if sd := populationStd(returns); sd > 0 {
		s.Sharpe = s.AvgReturnPct / sd
	}
	s.MaxDrawdown = maxDrawdown(trades)
	return s
}

// SummarizeBySide splits a mixed trade list by side
func SummarizeBySide(trades []contracts.Trade) map[contracts.Side]contracts.Summary {
	bySide := make(map[contracts.Side][]contracts.Trade)
	for _, t := range trades {
		bySide[t.Side] = append(bySide[t.Side], t)
	}
	out := make(map[contracts.Side]contracts.Summary, len(bySide))
	for side, ts := range bySide {
		out[side] = Summarize(ts)
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// populationStd is the ddof=0 standard deviation
func populationStd(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := mean(x)
	variance := 0.0
	for _, v := range x {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(x))
	return math.Sqrt(variance)
}

// maxDrawdown is the largest peak-to-trough fall of cumulative profit, in trade order
func maxDrawdown(trades []contracts.Trade) float64 {
	maxDD := 0.0
	peak := 0.0
	equity := 0.0
	for _, t := range trades {
		equity += t.Profit
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
