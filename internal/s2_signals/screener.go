package s2_signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// StageCounts is how many disclosures survived each screening stage, in order
type StageCounts struct {
	Loaded   int `json:"loaded"`
	Recent   int `json:"recent"`
	EPS      int `json:"eps"`
	CF       int `json:"cf"`
	ETA      int `json:"eta"`
	Treasury int `json:"treasury"`
	Noise    int `json:"noise"`
}

// ScreenResult is the outcome of one screening run
type ScreenResult struct {
	AsOf     time.Time                     `json:"as_of"`
	Counts   StageCounts                   `json:"counts"`
	Signals  []contracts.FundamentalSignal `json:"signals"`
	Inserted int                           `json:"inserted"`
}

// Screener turns statement history into fundamental signals
// ⭐ SSOT: statement screening thresholds are applied here only
type Screener struct {
	cfg        strategyconfig.Fundamental
	statements contracts.StatementStore
	logger     *logger.Logger
	now        func() time.Time
}

// NewScreener creates a new statement screener
func NewScreener(cfg strategyconfig.Fundamental, statements contracts.StatementStore, log *logger.Logger) *Screener {
	return &Screener{
		cfg:        cfg,
		statements: statements,
		logger:     log,
		now:        time.Now,
	}
}

// Screen computes features for every code and keeps the disclosures that pass all stages.
// Disclosures after asOf and before asOf-LookbackDays are ignored.
func (s *Screener) Screen(ctx context.Context, asOf time.Time) (*ScreenResult, error) {
	codes, err := s.statements.StatementCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement codes: %w", err)
	}

	lookbackStart := asOf.AddDate(0, 0, -s.cfg.LookbackDays)
	var all []StatementFeatures
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		history, err := s.statements.StatementHistory(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to load statements for %s: %w", code, err)
		}

		window := history[:0:0]
		for _, r := range history {
			at := r.DisclosedAt()
			if at.Before(lookbackStart) || at.After(asOf) {
				continue
			}
			window = append(window, r)
		}
		all = append(all, ComputeFeatures(window, s.cfg)...)
	}

	passed, counts := ScreenFeatures(all, asOf, s.cfg)

	created := s.now()
	result := &ScreenResult{
		AsOf:    asOf,
		Counts:  counts,
		Signals: make([]contracts.FundamentalSignal, 0, len(passed)),
	}
	for i := range passed {
		result.Signals = append(result.Signals, passed[i].Signal(created))
	}

	s.logger.WithFields(map[string]interface{}{
		"as_of":    asOf.Format(contracts.DateLayout),
		"codes":    len(codes),
		"loaded":   counts.Loaded,
		"recent":   counts.Recent,
		"eps":      counts.EPS,
		"cf":       counts.CF,
		"eta":      counts.ETA,
		"treasury": counts.Treasury,
		"noise":    counts.Noise,
	}).Info("Statement screening completed")

	return result, nil
}

// Save writes the signals; rows already stored for (code, disclosed_at) are left untouched
func (s *Screener) Save(ctx context.Context, store contracts.SignalStore, result *ScreenResult) error {
	inserted := 0
	for _, sig := range result.Signals {
		ok, err := store.UpsertFundamentalSignal(ctx, sig)
		if err != nil {
			return fmt.Errorf("failed to save fundamental signal %s: %w", sig.LocalCode, err)
		}
		if ok {
			inserted++
		}
	}
	result.Inserted = inserted

	s.logger.WithFields(map[string]interface{}{
		"passed":   len(result.Signals),
		"inserted": inserted,
	}).Info("Fundamental signals saved")
	return nil
}

// ScreenFeatures applies the stages in order: recent disclosure, EPS growth,
// cash-flow quality, equity-ratio change, treasury change, noise flags.
// Missing ratios count as zero. The recency window starts at midnight RecentDays before asOf's day.
func ScreenFeatures(features []StatementFeatures, asOf time.Time, cfg strategyconfig.Fundamental) ([]StatementFeatures, StageCounts) {
	counts := StageCounts{Loaded: len(features)}
	recentCut := contracts.TruncateDay(asOf).AddDate(0, 0, -cfg.RecentDays)

	var out []StatementFeatures
	for _, f := range features {
		if f.DisclosedAt.Before(recentCut) {
			continue
		}
		counts.Recent++

		eps := f.EPSYoYFY
		if eps == nil {
			eps = f.EPSYoYQ
		}
		if orZero(eps) <= cfg.EPSYoYMin {
			continue
		}
		counts.EPS++

		if orZero(f.CFQuality) <= cfg.CFQualityMin {
			continue
		}
		counts.CF++

		if orZero(f.ETADelta) <= cfg.ETADeltaMin {
			continue
		}
		counts.ETA++

		if orZero(f.TreasuryDelta) > cfg.TreasuryDeltaMax {
			continue
		}
		counts.Treasury++

		if f.Record.HasNoiseFlag() {
			continue
		}
		counts.Noise++

		out = append(out, f)
	}
	return out, counts
}
