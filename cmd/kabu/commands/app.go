package commands

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/external/jquants"
	"github.com/wonny/kabu/internal/s0_data"
	"github.com/wonny/kabu/internal/s0_data/cache"
	"github.com/wonny/kabu/internal/s0_data/collector"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/internal/s0_data/sqlite"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/database"
	"github.com/wonny/kabu/pkg/httputil"
	"github.com/wonny/kabu/pkg/logger"
	"github.com/wonny/kabu/pkg/redis"
)

// app bundles what every command needs: config, logger, thresholds and an open store
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config
	store    contracts.Store
	redis    *redis.Client
}

// newApp loads configuration and opens the configured store
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if storeBackend != "" {
		cfg.Store = storeBackend
	}
	if thresholdsPath != "" {
		cfg.ThresholdsPath = thresholdsPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	sc, _, err := strategyconfig.Load(cfg.ThresholdsPath)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}

	rc, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		rc.Close()
		return nil, err
	}
	if rc.Enabled() {
		store = cache.New(store, rc, cfg.Redis.TTL, log)
	}

	log.WithFields(map[string]interface{}{
		"store":      cfg.Store,
		"cache":      rc.Enabled(),
		"thresholds": cfg.ThresholdsPath,
	}).Debug("Application initialized")

	return &app{cfg: cfg, log: log, strategy: sc, store: store, redis: rc}, nil
}

// Close releases the store and the redis connection
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close store")
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}

// openStore builds the contracts.Store selected by cfg.Store
// ⭐ SSOT: store backends are chosen here only
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (contracts.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("Connected to database")
		return s0_data.NewRepository(db.Pool), nil
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLite.Path, err)
		}
		log.WithField("path", cfg.SQLite.Path).Info("Opened sqlite store")
		return s, nil
	case config.StoreMemory:
		log.Warn("Using in-memory store; nothing is persisted")
		return memory.New(), nil
	default:
		return nil, contracts.NewConfigurationError("store", "unknown store %q", cfg.Store)
	}
}

// jquants builds the vendor client. Requests pass a local token bucket and, when redis is
// enabled, the shared window so several processes stay under the vendor limit together.
func (a *app) jquants() *jquants.Client {
	hc := httputil.New(a.cfg, a.log).
		WithRateLimiter(rate.NewLimiter(rate.Limit(a.cfg.JQuants.RateLimit), 1))
	if a.redis.Enabled() {
		hc.WithRateLimiter(redis.NewRateLimiter(a.redis, "kabu").Bind(redis.JQuantsRateLimit))
	}
	return jquants.NewClient(a.cfg, hc, a.log)
}

func (a *app) collector() *collector.Collector {
	return collector.NewCollector(a.jquants(), a.store, a.log)
}

// parseDate parses a --flag value; empty means def
func parseDate(flag, v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	d, err := contracts.ParseDate(v)
	if err != nil {
		return time.Time{}, contracts.NewConfigurationError(flag, "invalid date %q (expected YYYY-MM-DD)", v)
	}
	return d, nil
}

// today is the current date in the schedule timezone, as a UTC midnight
func (a *app) today() time.Time {
	t := time.Now().In(a.strategy.Schedule.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
