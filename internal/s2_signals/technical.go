package s2_signals

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// IndicatorRow is one day of indicator values plus the flags derived from them
type IndicatorRow struct {
	Date       time.Time `json:"date"`
	Close      float64   `json:"close"`
	SMAShort   float64   `json:"sma_short"`
	SMAMid     float64   `json:"sma_mid"`
	SMALong    float64   `json:"sma_long"`
	RSI        float64   `json:"rsi"`
	ADX        float64   `json:"adx"`
	BBUpper    float64   `json:"bb_upper"`
	BBLower    float64   `json:"bb_lower"`
	MACD       float64   `json:"macd"`
	MACDSignal float64   `json:"macd_signal"`

	Signal contracts.TechnicalSignal `json:"signal"`
}

// TechnicalCalculator turns one symbol's adjusted OHLC history into daily signal flags.
// It is stateless: first-occurrence flags are left false and set later by FirstDetector.
// ⭐ SSOT: technical indicator math lives here only
type TechnicalCalculator struct {
	cfg    strategyconfig.Technical
	logger *logger.Logger
}

// NewTechnicalCalculator creates a new technical calculator
func NewTechnicalCalculator(cfg strategyconfig.Technical, log *logger.Logger) *TechnicalCalculator {
	return &TechnicalCalculator{
		cfg:    cfg,
		logger: log,
	}
}

// Calculate returns one row per input bar, ascending by date.
// Histories shorter than MinHistory yield nil: too little data is a skip, not an error.
func (c *TechnicalCalculator) Calculate(code string, bars []contracts.PriceBar) []IndicatorRow {
	if len(bars) < c.cfg.MinHistory {
		c.logger.WithFields(map[string]interface{}{
			"code": code,
			"rows": len(bars),
			"min":  c.cfg.MinHistory,
		}).Debug("Skipping indicators: insufficient history")
		return nil
	}

	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	n := len(sorted)
	rawClose := make([]float64, n)
	rawHigh := make([]float64, n)
	rawLow := make([]float64, n)
	for i, b := range sorted {
		rawClose[i] = b.AdjClose
		rawHigh[i] = b.AdjHigh
		rawLow[i] = b.AdjLow
	}
	closes := fill(rawClose)
	highs := fill(rawHigh)
	lows := fill(rawLow)

	p := c.cfg.Periods
	smaS := sma(closes, p.SMAShort)
	smaM := sma(closes, p.SMAMid)
	smaL := sma(closes, p.SMALong)
	slopeS := diff(smaS)
	slopeM := diff(smaM)
	slopeL := diff(smaL)

	rsi := wilderRSI(closes, p.RSI)
	adx := wilderADX(highs, lows, closes, p.ADX)

	bbMid := sma(closes, p.BB)
	bbStd := rollingStd(closes, p.BB)

	macdLine := make([]float64, n)
	fast := ema(closes, p.MACDFast)
	slow := ema(closes, p.MACDSlow)
	for i := range macdLine {
		macdLine[i] = fast[i] - slow[i]
	}
	macdSignal := ema(macdLine, p.MACDSignal)

	rows := make([]IndicatorRow, n)
	for i := 0; i < n; i++ {
		upper := bbMid[i] + c.cfg.BBStdDev*bbStd[i]
		lower := bbMid[i] - c.cfg.BBStdDev*bbStd[i]
		px := closes[i]

		sig := contracts.TechnicalSignal{
			Code:       code,
			SignalDate: contracts.TruncateDay(sorted[i].Date),
		}

		sig.MA = smaS[i] > smaM[i] && smaM[i] > smaL[i] &&
			slopeS[i] >= 0 && slopeM[i] >= 0 && slopeL[i] >= 0
		sig.RSI = rsi[i] >= c.cfg.RSIThreshold
		sig.ADX = adx[i] >= c.cfg.ADXThreshold
		upperTouch := px >= upper
		sig.BBLower = px <= lower
		sig.BB = upperTouch
		if c.cfg.BBPolicy == strategyconfig.BBEither {
			sig.BB = upperTouch || sig.BBLower
		}
		sig.MACD = macdLine[i] > macdSignal[i]
		sig.Overheating = px > smaS[i]*c.cfg.OverheatFactor
		sig.Oversold = px < smaS[i]*c.cfg.OversoldFactor
		sig.SignalCount = c.weightedCount(sig.MA, sig.RSI, sig.ADX, sig.BB, sig.MACD)

		maDown := smaS[i] < smaM[i] && smaM[i] < smaL[i] &&
			slopeS[i] <= 0 && slopeM[i] <= 0 && slopeL[i] <= 0
		rsiWeak := rsi[i] <= 100-c.cfg.RSIThreshold
		macdDown := macdLine[i] < macdSignal[i]
		sig.ShortCount = c.weightedCount(maDown, rsiWeak, sig.ADX, sig.BBLower, macdDown)

		rows[i] = IndicatorRow{
			Date:       sig.SignalDate,
			Close:      px,
			SMAShort:   smaS[i],
			SMAMid:     smaM[i],
			SMALong:    smaL[i],
			RSI:        rsi[i],
			ADX:        adx[i],
			BBUpper:    upper,
			BBLower:    lower,
			MACD:       macdLine[i],
			MACDSignal: macdSignal[i],
			Signal:     sig,
		}
	}

	last := rows[n-1]
	c.logger.WithFields(map[string]interface{}{
		"code":        code,
		"rows":        n,
		"last_date":   last.Date.Format(contracts.DateLayout),
		"last_count":  last.Signal.SignalCount,
		"last_rsi":    nanToZero(last.RSI),
		"last_adx":    nanToZero(last.ADX),
		"overheating": last.Signal.Overheating,
		"short_count": last.Signal.ShortCount,
	}).Debug("Calculated technical indicators")

	return rows
}

// weightedCount sums the weights of fired components and truncates to an integer
func (c *TechnicalCalculator) weightedCount(ma, rsi, adx, bb, macd bool) int {
	w := c.cfg.Weights
	total := 0.0
	if ma {
		total += w.MA
	}
	if rsi {
		total += w.RSI
	}
	if adx {
		total += w.ADX
	}
	if bb {
		total += w.BB
	}
	if macd {
		total += w.MACD
	}
	return int(total)
}

// Signals extracts the signal rows
func Signals(rows []IndicatorRow) []contracts.TechnicalSignal {
	out := make([]contracts.TechnicalSignal, len(rows))
	for i := range rows {
		out[i] = rows[i].Signal
	}
	return out
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
