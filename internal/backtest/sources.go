package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	s2 "github.com/wonny/kabu/internal/s2_signals"
	"github.com/wonny/kabu/internal/strategyconfig"
)

// TechnicalSource reads stored technical rows for the day.
// Rows whose price is stretched against the side are always excluded.
type TechnicalSource struct {
	Store     contracts.SignalStore
	Side      contracts.Side
	MinCount  int
	FirstOnly bool
}

// Name implements SignalSource
func (s *TechnicalSource) Name() string { return strategyconfig.SourceTechnical }

// Signals implements SignalSource
func (s *TechnicalSource) Signals(ctx context.Context, date time.Time) ([]Entry, error) {
	rows, err := s.Store.QuerySignals(ctx, contracts.SignalQuery{
		Kind:             contracts.KindTechnical,
		From:             date,
		To:               date,
		MinCount:         s.MinCount,
		FirstOnly:        s.FirstOnly,
		ExcludeStretched: true,
		Side:             s.Side,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		if r.Technical == nil {
			continue
		}
		entries = append(entries, Entry{
			Code:       r.Code,
			SignalDate: r.Date,
			Meta: map[string]float64{
				"signal_count": float64(r.Technical.CountFor(s.Side)),
			},
		})
	}
	return entries, nil
}

// FundamentalSource reads screened disclosures made on the day
type FundamentalSource struct {
	Store contracts.SignalStore
}

// Name implements SignalSource
func (s *FundamentalSource) Name() string { return strategyconfig.SourceFundamental }

// Signals implements SignalSource
func (s *FundamentalSource) Signals(ctx context.Context, date time.Time) ([]Entry, error) {
	rows, err := s.Store.QuerySignals(ctx, contracts.SignalQuery{
		Kind: contracts.KindFundamental,
		From: date,
		To:   date,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		f := r.Fundamental
		if f == nil {
			continue
		}
		meta := map[string]float64{}
		if f.EPSYoYFY != nil {
			meta["eps_yoy_fy"] = *f.EPSYoYFY
		}
		if f.EPSYoYQ != nil {
			meta["eps_yoy_q"] = *f.EPSYoYQ
		}
		if f.CFQuality != nil {
			meta["cf_quality"] = *f.CFQuality
		}
		entries = append(entries, Entry{
			Code:       f.LocalCode,
			SignalDate: f.DisclosedAt,
			Meta:       meta,
		})
	}
	return entries, nil
}

// ScoredSource ranks every priced code by model probability and enters the top N.
// Only codes with a bar on the day itself are scored.
type ScoredSource struct {
	Prices contracts.PriceStore
	Scorer s2.Scorer
	TopN   int

	once  sync.Once
	codes []string
	err   error
}

// Name implements SignalSource
func (s *ScoredSource) Name() string { return strategyconfig.SourceModel }

// Signals implements SignalSource
func (s *ScoredSource) Signals(ctx context.Context, date time.Time) ([]Entry, error) {
	s.once.Do(func() {
		s.codes, s.err = s.Prices.Codes(ctx)
	})
	if s.err != nil {
		return nil, fmt.Errorf("list codes: %w", s.err)
	}

	// 20 trading days of returns fit comfortably in 45 calendar days
	from := date.AddDate(0, 0, -45)
	var rows []s2.FeatureRow
	for _, code := range s.codes {
		bars, err := s.Prices.PriceHistory(ctx, code, from, date)
		if err != nil {
			return nil, fmt.Errorf("price history %s: %w", code, err)
		}
		if len(bars) == 0 || !contracts.TruncateDay(bars[len(bars)-1].Date).Equal(date) {
			continue
		}
		row, ok := s2.PriceFeatures(code, bars)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}

	top := s2.RankTopN(s.Scorer, rows, s.TopN)
	entries := make([]Entry, 0, len(top))
	for _, sc := range top {
		meta := map[string]float64{"prob": sc.Prob}
		for k, v := range sc.Input.Features {
			meta[k] = v
		}
		entries = append(entries, Entry{Code: sc.Code, SignalDate: sc.Date, Meta: meta})
	}
	return entries, nil
}

// NewSource builds the signal source a strategy spec asks for
func NewSource(spec strategyconfig.StrategySpec, prices contracts.PriceStore, signals contracts.SignalStore, model strategyconfig.Model) (SignalSource, error) {
	switch spec.Source {
	case strategyconfig.SourceTechnical:
		return &TechnicalSource{
			Store:     signals,
			Side:      contracts.Side(spec.Side),
			MinCount:  spec.MinCount,
			FirstOnly: spec.FirstOnly,
		}, nil
	case strategyconfig.SourceFundamental:
		return &FundamentalSource{Store: signals}, nil
	case strategyconfig.SourceModel:
		return &ScoredSource{
			Prices: prices,
			Scorer: s2.NewLogisticScorer(model),
			TopN:   spec.TopN,
		}, nil
	default:
		return nil, contracts.NewConfigurationError("source", "unknown source %q", spec.Source)
	}
}

// Build resolves a named strategy from the configuration into a runnable Strategy
func Build(cfg *strategyconfig.Config, name string, prices contracts.PriceStore, signals contracts.SignalStore) (Strategy, error) {
	spec, ok := cfg.Strategy(name)
	if !ok {
		return Strategy{}, contracts.NewConfigurationError("strategy", "unknown strategy %q", name)
	}
	source, err := NewSource(spec, prices, signals, cfg.Model)
	if err != nil {
		return Strategy{}, err
	}
	return FromSpec(spec, source)
}
