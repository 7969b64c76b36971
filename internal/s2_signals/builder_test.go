package s2_signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

func TestBuilder_BuildRange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.SavePrices(ctx, linearBars("1301", 80, 100, 1)))
	require.NoError(t, store.SavePrices(ctx, linearBars("7203", 30, 100, 1))) // too short

	b := NewBuilder(strategyconfig.Defaults().Technical, store, store, store, logger.NewNop())

	from, to := day0.AddDate(0, 0, 60), day0.AddDate(0, 0, 79)
	stats, err := b.BuildRange(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Codes)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 20, stats.Rows)

	rows, err := store.QuerySignals(ctx, contracts.SignalQuery{
		Kind:      contracts.KindTechnical,
		From:      from,
		To:        to,
		MinCount:  3,
		FirstOnly: true,
	})
	require.NoError(t, err)
	// a steady uptrend qualifies every day, so only the first built day is a rising edge
	require.Len(t, rows, 1)
	assert.Equal(t, from, rows[0].Date)

	// rebuilding the next day sees the stored history
	stats, err = b.Build(ctx, day0.AddDate(0, 0, 79))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rows)
	last, err := store.QuerySignals(ctx, contracts.SignalQuery{
		Kind: contracts.KindTechnical,
		Code: "1301",
		From: to,
		To:   to,
	})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.False(t, last[0].Technical.First)
}

func TestBuilder_RejectsInvertedRange(t *testing.T) {
	b := NewBuilder(strategyconfig.Defaults().Technical, memory.New(), nil, memory.New(), logger.NewNop())
	_, err := b.BuildRange(context.Background(), day0.AddDate(0, 0, 1), day0)
	assert.True(t, contracts.IsConfigurationError(err))
}
