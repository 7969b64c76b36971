package s2_signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// warm-up span loaded ahead of the first date being built, in calendar days
const priceLookbackDays = 120

// Builder runs the technical pipeline over the universe and persists the rows
// ⭐ SSOT: technical signal generation orchestration lives here only
type Builder struct {
	technical *TechnicalCalculator
	first     *FirstDetector

	prices  contracts.PriceStore
	listed  contracts.ListedStore
	signals contracts.SignalStore

	logger *logger.Logger
}

// BuildStats summarizes one build run
type BuildStats struct {
	Codes   int `json:"codes"`
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Rows    int `json:"rows"`
}

// NewBuilder creates a new signal builder
func NewBuilder(
	cfg strategyconfig.Technical,
	prices contracts.PriceStore,
	listed contracts.ListedStore,
	signals contracts.SignalStore,
	log *logger.Logger,
) *Builder {
	return &Builder{
		technical: NewTechnicalCalculator(cfg, log),
		first:     NewFirstDetector(cfg, signals, log),
		prices:    prices,
		listed:    listed,
		signals:   signals,
		logger:    log,
	}
}

// Build computes and stores technical signals for a single date
func (b *Builder) Build(ctx context.Context, date time.Time) (*BuildStats, error) {
	return b.BuildRange(ctx, date, date)
}

// BuildRange computes and stores technical signals for every trading date in [from, to].
// Codes with too little history are skipped; a failing code is logged and does not stop the run.
func (b *Builder) BuildRange(ctx context.Context, from, to time.Time) (*BuildStats, error) {
	from, to = contracts.TruncateDay(from), contracts.TruncateDay(to)
	if to.Before(from) {
		return nil, contracts.NewConfigurationError("from", "%s is after %s",
			from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	}

	codes, err := b.universe(ctx)
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(map[string]interface{}{
		"from":  from.Format(contracts.DateLayout),
		"to":    to.Format(contracts.DateLayout),
		"codes": len(codes),
	}).Info("Starting technical signal generation")

	stats := &BuildStats{Codes: len(codes)}
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := b.buildCode(ctx, code, from, to)
		switch {
		case err != nil:
			stats.Failed++
			b.logger.WithFields(map[string]interface{}{
				"code":  code,
				"error": err.Error(),
			}).Warn("Failed to build technical signals for stock")
		case n == 0:
			stats.Skipped++
		default:
			stats.Success++
			stats.Rows += n
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"total":   stats.Codes,
		"success": stats.Success,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
		"rows":    stats.Rows,
	}).Info("Technical signal generation completed")

	return stats, nil
}

// buildCode returns the number of rows stored for code
func (b *Builder) buildCode(ctx context.Context, code string, from, to time.Time) (int, error) {
	bars, err := b.prices.PriceHistory(ctx, code, from.AddDate(0, 0, -priceLookbackDays), to)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price data: %w", err)
	}

	rows := b.technical.Calculate(code, bars)
	if len(rows) == 0 {
		return 0, nil
	}

	var batch []contracts.TechnicalSignal
	for _, r := range rows {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		batch = append(batch, r.Signal)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := b.first.Apply(ctx, code, batch); err != nil {
		return 0, err
	}

	for _, sig := range batch {
		if err := b.signals.UpsertTechnicalSignal(ctx, sig); err != nil {
			return 0, fmt.Errorf("failed to save technical signal %s: %w",
				sig.SignalDate.Format(contracts.DateLayout), err)
		}
	}
	return len(batch), nil
}

// universe prefers the active listing and falls back to every priced code
func (b *Builder) universe(ctx context.Context) ([]string, error) {
	if b.listed != nil {
		codes, err := b.listed.ActiveCodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active codes: %w", err)
		}
		if len(codes) > 0 {
			return codes, nil
		}
	}
	codes, err := b.prices.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list priced codes: %w", err)
	}
	return codes, nil
}
