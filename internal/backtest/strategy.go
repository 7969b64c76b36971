package backtest

import (
	"context"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
)

// Entry is one signal occurrence the engine will try to trade
type Entry struct {
	Code       string
	SignalDate time.Time
	Meta       map[string]float64
}

// SignalSource yields the entries whose signal fired on date
type SignalSource interface {
	Name() string
	Signals(ctx context.Context, date time.Time) ([]Entry, error)
}

// Strategy fully describes one backtest: where entries come from and how positions are sized and closed
type Strategy struct {
	Name            string
	Side            contracts.Side
	Source          SignalSource
	EntryOffsetDays int
	Exit            ExitRule
	Capital         float64
	Workers         int // dates processed concurrently by RunRange; <= 1 is sequential
}

// Validate rejects parameter combinations that cannot produce meaningful trades
func (s Strategy) Validate() error {
	if s.Source == nil {
		return contracts.NewConfigurationError("source", "strategy %q has no signal source", s.Name)
	}
	if !s.Side.Valid() {
		return contracts.NewConfigurationError("side", "must be long or short, got %q", s.Side)
	}
	if s.EntryOffsetDays < 0 {
		return contracts.NewConfigurationError("entry_offset_days", "must be >= 0, got %d", s.EntryOffsetDays)
	}
	if s.Capital <= 0 {
		return contracts.NewConfigurationError("capital", "must be positive, got %v", s.Capital)
	}
	if s.Exit == nil {
		return contracts.NewConfigurationError("exit", "strategy %q has no exit rule", s.Name)
	}
	return s.Exit.Validate()
}

// FromSpec builds a Strategy from its configured description and a signal source
func FromSpec(spec strategyconfig.StrategySpec, source SignalSource) (Strategy, error) {
	if err := strategyconfig.ValidateStrategy(spec); err != nil {
		return Strategy{}, err
	}

	var exit ExitRule = FixedHorizon{HoldDays: spec.HoldDays}
	if spec.StopLossPct > 0 {
		exit = StopOrHorizon{HoldDays: spec.HoldDays, StopLossPct: spec.StopLossPct}
	}

	s := Strategy{
		Name:            spec.Name,
		Side:            contracts.Side(spec.Side),
		Source:          source,
		EntryOffsetDays: spec.EntryOffsetDays,
		Exit:            exit,
		Capital:         spec.Capital,
		Workers:         spec.Workers,
	}
	return s, s.Validate()
}
