package strategyconfig

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Config is the full research configuration: signal thresholds, backtest strategies and job schedule.
// It is built once at startup from Defaults() plus an optional override file and never mutated afterwards.
type Config struct {
	Technical   Technical      `yaml:"technical" json:"technical"`
	Fundamental Fundamental    `yaml:"fundamental" json:"fundamental"`
	Strategies  []StrategySpec `yaml:"strategies" json:"strategies"`
	Model       Model          `yaml:"model" json:"model"`
	Schedule    Schedule       `yaml:"schedule" json:"schedule"`
}

// Technical configures the indicator engine and first-occurrence detection
type Technical struct {
	MinHistory          int     `yaml:"min_history" json:"min_history"`
	RSIThreshold        float64 `yaml:"rsi_threshold" json:"rsi_threshold"`
	ADXThreshold        float64 `yaml:"adx_threshold" json:"adx_threshold"`
	OverheatFactor      float64 `yaml:"overheat_factor" json:"overheat_factor"`
	OversoldFactor      float64 `yaml:"oversold_factor" json:"oversold_factor"`
	SignalCountMin      int     `yaml:"signal_count_min" json:"signal_count_min"`
	ShortSignalCountMin int     `yaml:"short_signal_count_min" json:"short_signal_count_min"`
	FirstLookbackDays   int     `yaml:"first_lookback_days" json:"first_lookback_days"` // calendar days
	BBStdDev            float64 `yaml:"bb_stddev" json:"bb_stddev"`
	BBPolicy            string  `yaml:"bb_policy" json:"bb_policy"` // "split" or "either"
	Weights             Weights `yaml:"weights" json:"weights"`
	Periods             Periods `yaml:"periods" json:"periods"`
}

// BB policies
const (
	// BBSplit: upper-band touch is a long component, lower-band touch a short component
	BBSplit = "split"
	// BBEither: any band touch sets the long component (legacy screens)
	BBEither = "either"
)

// Weights are the per-component weights of the signal count
type Weights struct {
	MA   float64 `yaml:"ma" json:"ma"`
	RSI  float64 `yaml:"rsi" json:"rsi"`
	ADX  float64 `yaml:"adx" json:"adx"`
	BB   float64 `yaml:"bb" json:"bb"`
	MACD float64 `yaml:"macd" json:"macd"`
}

// Periods are indicator window lengths
type Periods struct {
	SMAShort   int `yaml:"sma_short" json:"sma_short"`
	SMAMid     int `yaml:"sma_mid" json:"sma_mid"`
	SMALong    int `yaml:"sma_long" json:"sma_long"`
	RSI        int `yaml:"rsi" json:"rsi"`
	ADX        int `yaml:"adx" json:"adx"`
	BB         int `yaml:"bb" json:"bb"`
	MACDFast   int `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal int `yaml:"macd_signal" json:"macd_signal"`
}

// Fundamental configures the statement screener
type Fundamental struct {
	EPSYoYMin        float64 `yaml:"eps_yoy_min" json:"eps_yoy_min"`
	CFQualityMin     float64 `yaml:"cf_quality_min" json:"cf_quality_min"`
	ETADeltaMin      float64 `yaml:"eta_delta_min" json:"eta_delta_min"`
	TreasuryDeltaMax float64 `yaml:"treasury_delta_max" json:"treasury_delta_max"`
	RecentDays       int     `yaml:"recent_days" json:"recent_days"`
	LookbackDays     int     `yaml:"lookback_days" json:"lookback_days"`
	WindowQ          int     `yaml:"window_q" json:"window_q"`
}

// Signal sources a strategy can draw entries from
const (
	SourceTechnical   = "technical"
	SourceFundamental = "fundamental"
	SourceModel       = "model"
)

// StrategySpec is a named backtest strategy
type StrategySpec struct {
	Name            string  `yaml:"name" json:"name"`
	Source          string  `yaml:"source" json:"source"`
	Side            string  `yaml:"side" json:"side"`
	EntryOffsetDays int     `yaml:"entry_offset_days" json:"entry_offset_days"`
	HoldDays        int     `yaml:"hold_days" json:"hold_days"`
	StopLossPct     float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"` // 0 disables the stop
	Capital         float64 `yaml:"capital" json:"capital"`
	MinCount        int     `yaml:"min_count" json:"min_count"`
	FirstOnly       bool    `yaml:"first_only" json:"first_only"`
	TopN            int     `yaml:"top_n" json:"top_n"`
	Workers         int     `yaml:"workers" json:"workers"`
}

// Model is a linear probability model over the momentum/statement features.
// Probability = sigmoid(Intercept + sum(Coefficients[f] * feature f)).
type Model struct {
	Intercept    float64            `yaml:"intercept" json:"intercept"`
	Coefficients map[string]float64 `yaml:"coefficients" json:"coefficients"`
}

// Schedule holds local HH:MM times for the daily jobs
type Schedule struct {
	Timezone     string `yaml:"timezone" json:"timezone"`
	QuotesAt     string `yaml:"quotes_at" json:"quotes_at"`
	StatementsAt string `yaml:"statements_at" json:"statements_at"`
	QualityAt    string `yaml:"quality_at" json:"quality_at"`
	SignalsAt    string `yaml:"signals_at" json:"signals_at"`
	ListedAt     string `yaml:"listed_at" json:"listed_at"` // Mondays only
}

// Strategy returns the spec with the given name
func (c *Config) Strategy(name string) (StrategySpec, bool) {
	for _, s := range c.Strategies {
		if s.Name == name {
			return s, true
		}
	}
	return StrategySpec{}, false
}

// Location resolves the schedule timezone, falling back to UTC
func (s Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Cron turns a validated HH:MM into a seconds-first cron spec on the given weekdays,
// e.g. Cron("20:30", "MON-FRI") == "0 30 20 * * MON-FRI"
func Cron(hhmm, days string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("0 %d %d * * %s", t.Minute(), t.Hour(), days)
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Technical: Technical{
			MinHistory:          50,
			RSIThreshold:        50,
			ADXThreshold:        20,
			OverheatFactor:      1.10,
			OversoldFactor:      0.95,
			SignalCountMin:      3,
			ShortSignalCountMin: 4,
			FirstLookbackDays:   30,
			BBStdDev:            1.0,
			BBPolicy:            BBSplit,
			Weights:             Weights{MA: 2, RSI: 1, ADX: 1, BB: 2, MACD: 1},
			Periods: Periods{
				SMAShort: 10, SMAMid: 20, SMALong: 50,
				RSI: 14, ADX: 14, BB: 20,
				MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
			},
		},
		Fundamental: Fundamental{
			EPSYoYMin:        0.30,
			CFQualityMin:     0.8,
			ETADeltaMin:      0.0,
			TreasuryDeltaMax: 0.0,
			RecentDays:       7,
			LookbackDays:     1095,
			WindowQ:          4,
		},
		Strategies: []StrategySpec{
			{
				Name: "statements", Source: SourceFundamental, Side: "long",
				EntryOffsetDays: 1, HoldDays: 40, Capital: 1_000_000, Workers: 1,
			},
			{
				Name: "technical", Source: SourceTechnical, Side: "long",
				HoldDays: 60, StopLossPct: 0.05, Capital: 1_000_000, MinCount: 3, Workers: 1,
			},
			{
				Name: "technical_first", Source: SourceTechnical, Side: "long",
				HoldDays: 60, StopLossPct: 0.05, Capital: 1_000_000, MinCount: 3, FirstOnly: true, Workers: 1,
			},
			{
				Name: "technical_short", Source: SourceTechnical, Side: "short",
				HoldDays: 20, StopLossPct: 0.05, Capital: 1_000_000, MinCount: 4, FirstOnly: true, Workers: 1,
			},
			{
				Name: "model", Source: SourceModel, Side: "long",
				HoldDays: 30, Capital: 1_000_000, TopN: 10, Workers: 1,
			},
		},
		Model: Model{
			Coefficients: map[string]float64{
				"ret_5":         2.0,
				"ret_20":        1.0,
				"volatility_20": -5.0,
				"turnover_norm": 0.2,
			},
		},
		Schedule: Schedule{
			Timezone:     "Asia/Tokyo",
			QuotesAt:     "20:00",
			StatementsAt: "20:30",
			QualityAt:    "20:45",
			SignalsAt:    "21:00",
			ListedAt:     "06:00",
		},
	}
}
