package s2_signals

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
)

// Feature names produced by PriceFeatures
const (
	FeatureRet5         = "ret_5"
	FeatureRet10        = "ret_10"
	FeatureRet20        = "ret_20"
	FeatureVolatility20 = "volatility_20"
	FeatureTurnoverNorm = "turnover_norm"
)

// FeatureRow is the model input for one (code, date)
type FeatureRow struct {
	Code     string
	Date     time.Time
	Features map[string]float64
}

// Scorer maps a feature row to a probability in [0, 1]
type Scorer interface {
	Score(row FeatureRow) float64
}

// ScoredCode is one code's probability on a date
type ScoredCode struct {
	Code  string
	Date  time.Time
	Prob  float64
	Input FeatureRow
}

// LogisticScorer is sigmoid(intercept + Σ coef·feature). Unknown features count as zero.
type LogisticScorer struct {
	model strategyconfig.Model
}

// NewLogisticScorer creates a scorer from configured coefficients
func NewLogisticScorer(model strategyconfig.Model) *LogisticScorer {
	return &LogisticScorer{model: model}
}

// Score implements Scorer
func (s *LogisticScorer) Score(row FeatureRow) float64 {
	z := s.model.Intercept
	for name, coef := range s.model.Coefficients {
		z += coef * row.Features[name]
	}
	return 1 / (1 + math.Exp(-z))
}

// PriceFeatures computes momentum, volatility and turnover features for the last bar.
// ok is false when there are fewer than 21 bars or the return features are undefined.
func PriceFeatures(code string, bars []contracts.PriceBar) (FeatureRow, bool) {
	const window = 20
	n := len(bars)
	if n < window+1 {
		return FeatureRow{}, false
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.AdjClose
		volumes[i] = b.AdjVolume
	}

	last := n - 1
	ret5, ok5 := periodReturn(closes, last, 5)
	ret10, ok10 := periodReturn(closes, last, 10)
	ret20, ok20 := periodReturn(closes, last, 20)
	if !ok5 || !ok10 || !ok20 {
		return FeatureRow{}, false
	}

	daily := make([]float64, 0, window)
	for i := last - window + 1; i <= last; i++ {
		r, ok := periodReturn(closes, i, 1)
		if !ok {
			return FeatureRow{}, false
		}
		daily = append(daily, r)
	}
	vol := rollingStd(daily, window)[window-1]

	var volSum float64
	for _, v := range volumes[last-window+1:] {
		volSum += v
	}
	turnover := 0.0
	if mean := volSum / window; mean > 0 {
		turnover = volumes[last] / mean
	}

	return FeatureRow{
		Code: code,
		Date: contracts.TruncateDay(bars[last].Date),
		Features: map[string]float64{
			FeatureRet5:         ret5,
			FeatureRet10:        ret10,
			FeatureRet20:        ret20,
			FeatureVolatility20: vol,
			FeatureTurnoverNorm: turnover,
		},
	}, true
}

func periodReturn(x []float64, i, k int) (float64, bool) {
	if i-k < 0 || x[i-k] <= 0 || x[i] <= 0 {
		return 0, false
	}
	return x[i]/x[i-k] - 1, true
}

// RankTopN scores rows and returns the n most probable, ties broken by code
func RankTopN(scorer Scorer, rows []FeatureRow, n int) []ScoredCode {
	scored := make([]ScoredCode, 0, len(rows))
	for _, r := range rows {
		scored = append(scored, ScoredCode{Code: r.Code, Date: r.Date, Prob: scorer.Score(r), Input: r})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Prob != scored[j].Prob {
			return scored[i].Prob > scored[j].Prob
		}
		return scored[i].Code < scored[j].Code
	})
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}
