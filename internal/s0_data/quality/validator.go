package quality

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/logger"
)

// Store is the read surface the gate needs
type Store interface {
	contracts.PriceStore
	contracts.StatementStore
	ActiveCodes(ctx context.Context) ([]string, error)
}

// QualityGate measures how complete the stored data is for a trading date
type QualityGate struct {
	store  Store
	config Config
	logger *logger.Logger
}

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage     float64 `yaml:"min_price_coverage"`
	MinVolumeCoverage    float64 `yaml:"min_volume_coverage"`
	MinStatementCoverage float64 `yaml:"min_statement_coverage"`
}

// DefaultConfig tolerates suspended issues and codes without any disclosure yet
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:     0.95,
		MinVolumeCoverage:    0.90,
		MinStatementCoverage: 0.80,
	}
}

// Snapshot is the coverage of one date over the active universe
type Snapshot struct {
	Date         time.Time          `json:"date"`
	TotalCodes   int                `json:"total_codes"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"`
	Missing      []string           `json:"missing,omitempty"` // active codes without a bar
	Passed       bool               `json:"passed"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(store Store, config Config, log *logger.Logger) *QualityGate {
	return &QualityGate{
		store:  store,
		config: config,
		logger: log,
	}
}

// Check validates data coverage for a given date
// ⭐ SSOT: post-fetch completeness check
func (g *QualityGate) Check(ctx context.Context, date time.Time) (*Snapshot, error) {
	codes, err := g.store.ActiveCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active codes: %w", err)
	}

	snapshot := &Snapshot{
		Date:       contracts.TruncateDay(date),
		TotalCodes: len(codes),
		Coverage:   make(map[string]float64),
	}
	if len(codes) == 0 {
		return snapshot, nil
	}

	withPrice, withVolume := 0, 0
	for _, code := range codes {
		bar, err := g.store.PriceAt(ctx, code, date)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", code, err)
		}
		if bar == nil {
			snapshot.Missing = append(snapshot.Missing, code)
			continue
		}
		withPrice++
		if bar.Volume > 0 {
			withVolume++
		}
	}

	disclosed, err := g.store.StatementCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("statement codes: %w", err)
	}
	has := make(map[string]bool, len(disclosed))
	for _, c := range disclosed {
		has[c] = true
	}
	withStatements := 0
	for _, c := range codes {
		if has[c] {
			withStatements++
		}
	}

	total := float64(len(codes))
	snapshot.Coverage["price"] = float64(withPrice) / total
	snapshot.Coverage["volume"] = float64(withVolume) / total
	snapshot.Coverage["statements"] = float64(withStatements) / total
	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)
	snapshot.Passed = g.passed(snapshot.Coverage)
	sort.Strings(snapshot.Missing)

	g.logger.WithFields(map[string]interface{}{
		"date":    snapshot.Date.Format(contracts.DateLayout),
		"codes":   snapshot.TotalCodes,
		"score":   snapshot.QualityScore,
		"missing": len(snapshot.Missing),
		"passed":  snapshot.Passed,
	}).Info("Data quality checked")

	return snapshot, nil
}

func (g *QualityGate) passed(coverage map[string]float64) bool {
	return coverage["price"] >= g.config.MinPriceCoverage &&
		coverage["volume"] >= g.config.MinVolumeCoverage &&
		coverage["statements"] >= g.config.MinStatementCoverage
}

// calculateScore is a weighted average of the coverages
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	weights := map[string]float64{
		"price":      0.4,
		"volume":     0.4,
		"statements": 0.2,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}
