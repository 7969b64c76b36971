package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")

	allowed, remaining, err := limiter.Allow(context.Background(), JQuantsRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, JQuantsRateLimit.Limit, remaining)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, limiter.Bind(JQuantsRateLimit).Wait(ctx))
}

func TestCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(disabledClient(t), "test")

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", TTLShort))
	assert.NoError(t, cache.Delete(ctx, "key"))

	n, err := cache.Incr(ctx, GenerationKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// GetOrSet still fills dest from fn
	calls := 0
	var got []int
	err = cache.GetOrSet(ctx, "list", &got, TTLShort, func() (interface{}, error) {
		calls++
		return []int{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, calls)
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ListedKey", ListedKey(3, "7203"), "g3:listed:7203"},
		{"PriceHistoryKey", PriceHistoryKey(0, "7203", "2024-01-01", "2024-01-31"), "g0:prices:7203:2024-01-01:2024-01-31"},
		{"CalendarKey", CalendarKey(12, "2024-01-01", "2024-12-31"), "g12:calendar:2024-01-01:2024-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
