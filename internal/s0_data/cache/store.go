// Package cache puts redis in front of the read-heavy parts of a contracts.Store
package cache

import (
	"context"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/logger"
	"github.com/wonny/kabu/pkg/redis"
)

// Store caches price history, trading calendars and listings.
// Every write through it bumps a generation counter so stale keys are never read again.
type Store struct {
	contracts.Store
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// New wraps inner. A disabled redis client turns the decorator into a pass-through.
func New(inner contracts.Store, client *redis.Client, ttl time.Duration, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &Store{
		Store:  inner,
		cache:  redis.NewCache(client, "kabu"),
		ttl:    ttl,
		logger: log,
	}
}

func (s *Store) generation(ctx context.Context) int64 {
	gen, err := s.cache.Counter(ctx, redis.GenerationKey)
	if err != nil {
		s.logger.WithError(err).Warn("Cache generation unavailable")
	}
	return gen
}

func (s *Store) bump(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, redis.GenerationKey); err != nil {
		s.logger.WithError(err).Warn("Cache invalidation failed")
	}
}

// PriceHistory implements contracts.PriceStore
func (s *Store) PriceHistory(ctx context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	key := redis.PriceHistoryKey(s.generation(ctx), code, from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	var bars []contracts.PriceBar
	err := s.cache.GetOrSet(ctx, key, &bars, s.ttl, func() (interface{}, error) {
		return s.Store.PriceHistory(ctx, code, from, to)
	})
	return bars, err
}

// TradingCalendar implements contracts.PriceStore
func (s *Store) TradingCalendar(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	key := redis.CalendarKey(s.generation(ctx), from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	var dates []time.Time
	err := s.cache.GetOrSet(ctx, key, &dates, s.ttl, func() (interface{}, error) {
		return s.Store.TradingCalendar(ctx, from, to)
	})
	return dates, err
}

// ListedInfo implements contracts.ListedStore
func (s *Store) ListedInfo(ctx context.Context, code string) (*contracts.ListedInfo, error) {
	var info *contracts.ListedInfo
	err := s.cache.GetOrSet(ctx, redis.ListedKey(s.generation(ctx), code), &info, s.ttl, func() (interface{}, error) {
		return s.Store.ListedInfo(ctx, code)
	})
	return info, err
}

// SavePrices implements contracts.PriceWriter
func (s *Store) SavePrices(ctx context.Context, bars []contracts.PriceBar) error {
	if err := s.Store.SavePrices(ctx, bars); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// SaveListedInfo implements contracts.ListedStore
func (s *Store) SaveListedInfo(ctx context.Context, rows []contracts.ListedInfo) error {
	if err := s.Store.SaveListedInfo(ctx, rows); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}
