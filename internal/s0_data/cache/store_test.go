package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/logger"
	"github.com/wonny/kabu/pkg/redis"
)

func TestStore_PassThroughWhenDisabled(t *testing.T) {
	ctx := context.Background()
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	inner := memory.New()
	s := New(inner, client, 0, logger.NewNop())

	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePrices(ctx, []contracts.PriceBar{{Code: "7203", Date: day, AdjClose: 100}}))
	require.NoError(t, s.SaveListedInfo(ctx, []contracts.ListedInfo{{Code: "7203", CompanyName: "Toyota"}}))

	bars, err := s.PriceHistory(ctx, "7203", day, day)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 100.0, bars[0].AdjClose)

	dates, err := s.TradingCalendar(ctx, day.AddDate(0, 0, -3), day)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day}, dates)

	info, err := s.ListedInfo(ctx, "7203")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Toyota", info.CompanyName)

	info, err = s.ListedInfo(ctx, "0000")
	require.NoError(t, err)
	assert.Nil(t, info)

	// methods without a cache path go straight to the inner store
	at, err := s.PriceAt(ctx, "7203", day)
	require.NoError(t, err)
	assert.NotNil(t, at)
}
