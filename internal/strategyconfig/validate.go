package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/wonny/kabu/internal/contracts"
)

// ValidationError is a fatal configuration problem
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	t := cfg.Technical
	if t.MinHistory < t.Periods.SMALong {
		return ValidationError{"technical.min_history", fmt.Sprintf("must be >= sma_long (%d)", t.Periods.SMALong)}
	}
	if t.RSIThreshold < 0 || t.RSIThreshold > 100 {
		return ValidationError{"technical.rsi_threshold", "must be in [0, 100]"}
	}
	if t.ADXThreshold < 0 || t.ADXThreshold > 100 {
		return ValidationError{"technical.adx_threshold", "must be in [0, 100]"}
	}
	if t.OverheatFactor <= 1 {
		return ValidationError{"technical.overheat_factor", "must be > 1"}
	}
	if t.OversoldFactor <= 0 || t.OversoldFactor >= 1 {
		return ValidationError{"technical.oversold_factor", "must be in (0, 1)"}
	}
	if t.SignalCountMin <= 0 || t.ShortSignalCountMin <= 0 {
		return ValidationError{"technical.signal_count_min", "must be > 0"}
	}
	if t.FirstLookbackDays <= 0 {
		return ValidationError{"technical.first_lookback_days", "must be > 0"}
	}
	if t.BBStdDev <= 0 {
		return ValidationError{"technical.bb_stddev", "must be > 0"}
	}
	if t.BBPolicy != BBSplit && t.BBPolicy != BBEither {
		return ValidationError{"technical.bb_policy", "must be split or either"}
	}
	for name, w := range map[string]float64{"ma": t.Weights.MA, "rsi": t.Weights.RSI, "adx": t.Weights.ADX, "bb": t.Weights.BB, "macd": t.Weights.MACD} {
		if w < 0 {
			return ValidationError{"technical.weights." + name, "must be >= 0"}
		}
	}
	if err := validatePeriods(t.Periods); err != nil {
		return err
	}

	f := cfg.Fundamental
	if f.RecentDays <= 0 {
		return ValidationError{"fundamental.recent_days", "must be > 0"}
	}
	if f.LookbackDays < f.RecentDays {
		return ValidationError{"fundamental.lookback_days", "must be >= recent_days"}
	}
	if f.WindowQ <= 0 {
		return ValidationError{"fundamental.window_q", "must be > 0"}
	}

	seen := make(map[string]bool, len(cfg.Strategies))
	for i, s := range cfg.Strategies {
		field := fmt.Sprintf("strategies[%d]", i)
		if s.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[s.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate strategy %q", s.Name)}
		}
		seen[s.Name] = true
		if err := ValidateStrategy(s); err != nil {
			var ce *contracts.ConfigurationError
			if errors.As(err, &ce) {
				return ValidationError{field + "." + ce.Field, ce.Message}
			}
			return err
		}
	}

	sch := cfg.Schedule
	for field, v := range map[string]string{
		"schedule.quotes_at":     sch.QuotesAt,
		"schedule.statements_at": sch.StatementsAt,
		"schedule.quality_at":    sch.QualityAt,
		"schedule.signals_at":    sch.SignalsAt,
		"schedule.listed_at":     sch.ListedAt,
	} {
		if err := validateHHMM(v); err != nil {
			return ValidationError{field, err.Error()}
		}
	}
	if sch.Timezone != "" {
		if _, err := time.LoadLocation(sch.Timezone); err != nil {
			return ValidationError{"schedule.timezone", err.Error()}
		}
	}

	return nil
}

// ValidateStrategy checks one strategy spec; failures are contracts.ConfigurationError
func ValidateStrategy(s StrategySpec) error {
	switch s.Source {
	case SourceTechnical, SourceFundamental, SourceModel:
	default:
		return contracts.NewConfigurationError("source", "unknown source %q", s.Source)
	}
	if !contracts.Side(s.Side).Valid() {
		return contracts.NewConfigurationError("side", "must be long or short, got %q", s.Side)
	}
	if s.HoldDays <= 0 {
		return contracts.NewConfigurationError("hold_days", "must be > 0, got %d", s.HoldDays)
	}
	if s.EntryOffsetDays < 0 {
		return contracts.NewConfigurationError("entry_offset_days", "must be >= 0, got %d", s.EntryOffsetDays)
	}
	if s.StopLossPct < 0 || s.StopLossPct >= 1 {
		return contracts.NewConfigurationError("stop_loss_pct", "must be in [0, 1), got %v", s.StopLossPct)
	}
	if s.Capital <= 0 {
		return contracts.NewConfigurationError("capital", "must be > 0, got %v", s.Capital)
	}
	if s.Source == SourceModel && s.TopN <= 0 {
		return contracts.NewConfigurationError("top_n", "must be > 0 for model strategies")
	}
	if s.Source == SourceFundamental && s.Side == string(contracts.SideShort) {
		return contracts.NewConfigurationError("side", "fundamental screens only produce long entries")
	}
	if s.Workers < 0 {
		return contracts.NewConfigurationError("workers", "must be >= 0")
	}
	return nil
}

func validatePeriods(p Periods) error {
	for name, v := range map[string]int{
		"sma_short": p.SMAShort, "sma_mid": p.SMAMid, "sma_long": p.SMALong,
		"rsi": p.RSI, "adx": p.ADX, "bb": p.BB,
		"macd_fast": p.MACDFast, "macd_slow": p.MACDSlow, "macd_signal": p.MACDSignal,
	} {
		if v <= 0 {
			return ValidationError{"technical.periods." + name, "must be > 0"}
		}
	}
	if !(p.SMAShort < p.SMAMid && p.SMAMid < p.SMALong) {
		return ValidationError{"technical.periods", "sma windows must satisfy short < mid < long"}
	}
	if p.MACDFast >= p.MACDSlow {
		return ValidationError{"technical.periods", "macd_fast must be < macd_slow"}
	}
	return nil
}

func validateHHMM(s string) error {
	if !hhmm.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}
