package s2_signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

type stmtOpt func(*contracts.StatementRecord)

func stmt(num, period string, disclosed time.Time, opts ...stmtOpt) contracts.StatementRecord {
	r := contracts.StatementRecord{
		DisclosureNumber:    num,
		DisclosedDate:       disclosed,
		DisclosedTime:       "15:00:00",
		LocalCode:           "13010",
		TypeOfCurrentPeriod: period,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func with(sales, op, profit, eps float64) stmtOpt {
	return func(r *contracts.StatementRecord) {
		r.NetSales = contracts.Float(sales)
		r.OperatingProfit = contracts.Float(op)
		r.Profit = contracts.Float(profit)
		r.EarningsPerShare = contracts.Float(eps)
	}
}

func date(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestComputeFeatures(t *testing.T) {
	cfg := strategyconfig.Defaults().Fundamental
	records := []contracts.StatementRecord{
		stmt("1", "FY", date(2023, 5, 10), with(1000, 100, -10, 10)),
		stmt("2", "1Q", date(2023, 8, 10), with(1100, 120, 20, 12)),
		stmt("3", "2Q", date(2023, 11, 10), with(1200, 120, 30, 14)),
		stmt("4", "3Q", date(2024, 2, 10), with(1000, 150, 40, 16)),
		stmt("5", "FY", date(2024, 5, 10), with(1250, 250, 50, 20)),
		stmt("6", "1Q", date(2024, 8, 10), with(1250, 125, 60, 18)),
	}

	f := ComputeFeatures(records, cfg)
	require.Len(t, f, 6)

	// first row has no predecessor
	assert.Nil(t, f[0].SalesQoQ)
	assert.Nil(t, f[0].EPSYoYFY)
	assert.InDelta(t, 0.1, *f[0].OpMargin, 1e-9)

	assert.InDelta(t, 0.1, *f[1].SalesQoQ, 1e-9)
	assert.InDelta(t, 0.2, *f[1].OpQoQ, 1e-9)
	assert.InDelta(t, 2.0, *f[1].Leverage, 1e-9)
	assert.True(t, f[1].Turnaround)
	assert.False(t, f[2].Turnaround)

	// op margin delta needs a full window of four
	assert.Nil(t, f[2].OpMarginDelta)
	require.NotNil(t, f[3].OpMarginDelta)
	mean := (0.1 + 120.0/1100 + 0.1 + 0.15) / 4
	assert.InDelta(t, 0.15-mean, *f[3].OpMarginDelta, 1e-9)

	// FY compares with the previous FY, quarters with the same quarter
	assert.InDelta(t, 1.0, *f[4].EPSYoYFY, 1e-9)
	assert.Nil(t, f[4].EPSYoYQ)
	assert.InDelta(t, 0.5, *f[5].EPSYoYQ, 1e-9)
	assert.Nil(t, f[5].EPSYoYFY)

	// sales unchanged: leverage undefined
	assert.InDelta(t, 0.0, *f[5].SalesQoQ, 1e-9)
	assert.Nil(t, f[5].Leverage)
}

func TestComputeFeatures_MissingValues(t *testing.T) {
	records := []contracts.StatementRecord{
		stmt("1", "FY", date(2023, 5, 10), func(r *contracts.StatementRecord) {
			r.OperatingProfit = contracts.Float(0)
			r.CashFlowsFromOperatingActivities = contracts.Float(50)
			r.EquityToAssetRatio = contracts.Float(0.4)
		}),
		stmt("2", "1Q", date(2023, 8, 10), func(r *contracts.StatementRecord) {
			r.OperatingProfit = contracts.Float(10)
			r.CashFlowsFromOperatingActivities = contracts.Float(12)
			r.EquityToAssetRatio = contracts.Float(0.45)
		}),
	}

	f := ComputeFeatures(records, strategyconfig.Defaults().Fundamental)
	assert.Nil(t, f[0].CFQuality, "zero denominator")
	assert.Nil(t, f[1].OpQoQ, "previous value is zero")
	assert.InDelta(t, 1.2, *f[1].CFQuality, 1e-9)
	assert.InDelta(t, 0.05, *f[1].ETADelta, 1e-9)
	assert.Nil(t, f[1].TreasuryDelta)
	assert.Nil(t, f[1].OpMargin)
}

func TestScreenFeatures_Stages(t *testing.T) {
	cfg := strategyconfig.Defaults().Fundamental
	asOf := date(2024, 5, 15)

	pass := StatementFeatures{
		DisclosedAt: date(2024, 5, 10),
		EPSYoYFY:    contracts.Float(0.5),
		CFQuality:   contracts.Float(1.0),
		ETADelta:    contracts.Float(0.01),
	}
	old := pass
	old.DisclosedAt = date(2024, 5, 1)
	quarterOnly := pass
	quarterOnly.EPSYoYFY = nil
	quarterOnly.EPSYoYQ = contracts.Float(0.4)
	weakEPS := pass
	weakEPS.EPSYoYFY = contracts.Float(0.30)
	noCF := pass
	noCF.CFQuality = nil
	buyback := pass
	buyback.TreasuryDelta = contracts.Float(1000)
	noisy := pass
	noisy.Record.MaterialChangesInSubsidiaries = true

	out, counts := ScreenFeatures([]StatementFeatures{pass, old, quarterOnly, weakEPS, noCF, buyback, noisy}, asOf, cfg)

	assert.Len(t, out, 2)
	assert.Equal(t, StageCounts{Loaded: 7, Recent: 6, EPS: 5, CF: 4, ETA: 4, Treasury: 3, Noise: 2}, counts)
}

func TestScreenFeatures_RecencyIncludesWholeFirstDay(t *testing.T) {
	cfg := strategyconfig.Defaults().Fundamental
	require.Equal(t, 7, cfg.RecentDays)
	endOfDay := date(2024, 1, 12).Add(24*time.Hour - time.Second)

	edge := StatementFeatures{DisclosedAt: date(2024, 1, 5).Add(15 * time.Hour)}
	before := StatementFeatures{DisclosedAt: date(2024, 1, 4).Add(15 * time.Hour)}

	_, counts := ScreenFeatures([]StatementFeatures{edge, before}, endOfDay, cfg)
	assert.Equal(t, 1, counts.Recent)
}

func TestScreener_ScreenAndSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cfg := strategyconfig.Defaults().Fundamental

	prev := stmt("A1", "FY", date(2023, 5, 10), with(1000, 100, 10, 10), func(r *contracts.StatementRecord) {
		r.EquityToAssetRatio = contracts.Float(0.40)
		r.TreasuryShares = contracts.Float(500)
	})
	cur := stmt("A2", "FY", date(2024, 5, 10), with(1200, 150, 20, 15), func(r *contracts.StatementRecord) {
		r.EquityToAssetRatio = contracts.Float(0.42)
		r.TreasuryShares = contracts.Float(500)
		r.CashFlowsFromOperatingActivities = contracts.Float(180)
	})
	require.NoError(t, store.SaveStatements(ctx, []contracts.StatementRecord{cur, prev}))

	screener := NewScreener(cfg, store, logger.NewNop())
	asOf := date(2024, 5, 12)

	result, err := screener.Screen(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, result.Signals, 1)
	sig := result.Signals[0]
	assert.Equal(t, "13010", sig.LocalCode)
	assert.Equal(t, time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC), sig.DisclosedAt)
	assert.InDelta(t, 0.5, *sig.EPSYoYFY, 1e-9)
	assert.InDelta(t, 1.2, *sig.CFQuality, 1e-9)

	require.NoError(t, screener.Save(ctx, store, result))
	assert.Equal(t, 1, result.Inserted)

	again, err := screener.Screen(ctx, asOf)
	require.NoError(t, err)
	require.NoError(t, screener.Save(ctx, store, again))
	assert.Equal(t, 0, again.Inserted)

	rows, err := store.QuerySignals(ctx, contracts.SignalQuery{
		Kind: contracts.KindFundamental,
		From: date(2024, 1, 1),
		To:   date(2024, 12, 31),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestScreener_IgnoresFutureDisclosures(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveStatements(ctx, []contracts.StatementRecord{
		stmt("A1", "FY", date(2024, 5, 10), with(1000, 100, 10, 10)),
	}))

	result, err := NewScreener(strategyconfig.Defaults().Fundamental, store, logger.NewNop()).Screen(ctx, date(2024, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Counts.Loaded)
	assert.Empty(t, result.Signals)
}
