package backtest

import (
	"math"
	"sort"

	"github.com/wonny/kabu/internal/contracts"
)

// DefaultConfidence is the VaR confidence used by reports
const DefaultConfidence = 0.95

// Risk describes the tail and asymmetry of per-trade returns.
// ⭐ SSOT: VaR and CVaR are losses expressed as positive return_pct (5 = a 5% loss)
type Risk struct {
	Confidence   float64 `json:"confidence"`
	VaR          float64 `json:"var"`
	CVaR         float64 `json:"cvar"`
	Sortino      float64 `json:"sortino"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWinPct    float64 `json:"avg_win_pct"`
	AvgLossPct   float64 `json:"avg_loss_pct"`
}

// AnalyzeRisk computes historical-simulation VaR/CVaR and the win/loss asymmetry of trades.
// Sortino is mean(return_pct) over the downside deviation of the losing trades; 0 without losses.
// ProfitFactor is gross profit over gross loss; 0 without losses.
func AnalyzeRisk(trades []contracts.Trade, confidence float64) Risk {
	r := Risk{Confidence: confidence}
	if len(trades) == 0 {
		return r
	}

	returns := make([]float64, len(trades))
	var grossWin, grossLoss, sumWin, sumLoss, sqLoss float64
	wins, losses := 0, 0
	for i, t := range trades {
		returns[i] = t.ReturnPct
		switch {
		case t.Profit > 0:
			grossWin += t.Profit
		case t.Profit < 0:
			grossLoss -= t.Profit
		}
		switch {
		case t.ReturnPct > 0:
			sumWin += t.ReturnPct
			wins++
		case t.ReturnPct < 0:
			sumLoss += t.ReturnPct
			sqLoss += t.ReturnPct * t.ReturnPct
			losses++
		}
	}

	r.VaR, r.CVaR = historicalVaR(returns, confidence)

	if wins > 0 {
		r.AvgWinPct = sumWin / float64(wins)
	}
	if losses > 0 {
		r.AvgLossPct = sumLoss / float64(losses)
		if downside := math.Sqrt(sqLoss / float64(losses)); downside > 0 {
			r.Sortino = mean(returns) / downside
		}
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossWin / grossLoss
	}
	return r
}

// historicalVaR takes the (1-confidence) quantile of the sorted returns as VaR
// and the mean of everything at or below it as CVaR.
func historicalVaR(returns []float64, confidence float64) (float64, float64) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}

	tail := mean(sorted[:idx+1])
	return lossOnly(sorted[idx]), lossOnly(tail)
}

func lossOnly(v float64) float64 {
	if v < 0 {
		return -v
	}
	return 0
}
