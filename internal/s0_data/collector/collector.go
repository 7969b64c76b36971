package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/kabu/internal/calendar"
	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/external/jquants"
	"github.com/wonny/kabu/pkg/logger"
)

// Source is the vendor surface the collector needs; *jquants.Client implements it
type Source interface {
	DailyQuotesByDate(ctx context.Context, date time.Time) ([]contracts.PriceBar, error)
	DailyQuotesByCode(ctx context.Context, code string) ([]contracts.PriceBar, error)
	StatementsByDate(ctx context.Context, date time.Time) ([]contracts.StatementRecord, error)
	StatementsByCode(ctx context.Context, code string) ([]contracts.StatementRecord, error)
	ListedInfo(ctx context.Context) ([]contracts.ListedInfo, error)
}

var _ Source = (*jquants.Client)(nil)

// Sink is where fetched rows are written
type Sink interface {
	contracts.PriceWriter
	contracts.StatementWriter
	contracts.ListedStore
}

// Collector orchestrates data collection from J-Quants into a store
// ⭐ SSOT: data collection orchestration lives in this package only
type Collector struct {
	source Source
	sink   Sink
	logger *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent requests
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// NewCollector creates a new Collector instance
func NewCollector(source Source, sink Sink, log *logger.Logger) *Collector {
	return &Collector{
		source: source,
		sink:   sink,
		logger: log.WithField("module", "collector"),
	}
}

// FetchResult is the outcome for one unit of work: a date or a code
type FetchResult struct {
	Key            string
	PriceCount     int
	StatementCount int
	Error          error
}

// Failed counts results carrying an error
func Failed(results []FetchResult) int {
	n := 0
	for _, r := range results {
		if r.Error != nil {
			n++
		}
	}
	return n
}

// each runs fn over n units with a bounded pool. Unit errors are recorded, not returned;
// only cancellation aborts.
func (c *Collector) each(ctx context.Context, n int, cfg Config, fn func(ctx context.Context, i int) FetchResult) ([]FetchResult, error) {
	results := make([]FetchResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = fn(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (c *Collector) logDone(what string, results []FetchResult) {
	prices, statements := 0, 0
	for _, r := range results {
		prices += r.PriceCount
		statements += r.StatementCount
	}
	c.logger.WithFields(map[string]interface{}{
		"units":      len(results),
		"failed":     Failed(results),
		"prices":     prices,
		"statements": statements,
	}).Info(what + " collection completed")
}

// FetchQuotes fetches every weekday in [from, to] by date, then refetches the full
// history of any code whose adjustment factor moved on one of those dates.
func (c *Collector) FetchQuotes(ctx context.Context, from, to time.Time, cfg Config) ([]FetchResult, error) {
	dates := calendar.Weekdays(from, to)

	c.logger.WithFields(map[string]interface{}{
		"from":    from.Format(contracts.DateLayout),
		"to":      to.Format(contracts.DateLayout),
		"dates":   len(dates),
		"workers": cfg.workers(),
	}).Info("Starting quote collection")

	var mu sync.Mutex
	splits := make(map[string]bool)

	results, err := c.each(ctx, len(dates), cfg, func(ctx context.Context, i int) FetchResult {
		d := dates[i]
		res := FetchResult{Key: d.Format(contracts.DateLayout)}

		bars, err := c.source.DailyQuotesByDate(ctx, d)
		if err != nil {
			res.Error = err
			c.logger.WithError(err).WithField("date", res.Key).Error("Failed to fetch quotes")
			return res
		}
		if len(bars) == 0 {
			c.logger.WithField("date", res.Key).Debug("No quotes (market holiday)")
			return res
		}
		if err := c.sink.SavePrices(ctx, bars); err != nil {
			res.Error = fmt.Errorf("save prices: %w", err)
			c.logger.WithError(err).WithField("date", res.Key).Error("Failed to save quotes")
			return res
		}
		res.PriceCount = len(bars)

		mu.Lock()
		for _, code := range jquants.SplitCodes(bars) {
			splits[code] = true
		}
		mu.Unlock()
		return res
	})
	if err != nil {
		return results, err
	}

	if len(splits) > 0 {
		codes := make([]string, 0, len(splits))
		for code := range splits {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		c.logger.WithField("codes", codes).Info("Split detected, refetching full history")
		refetched, err := c.FetchQuoteHistory(ctx, codes, cfg)
		results = append(results, refetched...)
		if err != nil {
			return results, err
		}
	}

	c.logDone("Quote", results)
	return results, nil
}

// FetchQuoteHistory replaces the stored history of each code with the vendor's full series
func (c *Collector) FetchQuoteHistory(ctx context.Context, codes []string, cfg Config) ([]FetchResult, error) {
	return c.each(ctx, len(codes), cfg, func(ctx context.Context, i int) FetchResult {
		res := FetchResult{Key: codes[i]}
		bars, err := c.source.DailyQuotesByCode(ctx, codes[i])
		if err != nil {
			res.Error = err
			c.logger.WithError(err).WithField("code", codes[i]).Error("Failed to fetch quote history")
			return res
		}
		if err := c.sink.SavePrices(ctx, bars); err != nil {
			res.Error = fmt.Errorf("save prices: %w", err)
			return res
		}
		res.PriceCount = len(bars)
		return res
	})
}

// FetchStatementsByDate fetches disclosures published on each weekday in [from, to]
func (c *Collector) FetchStatementsByDate(ctx context.Context, from, to time.Time, cfg Config) ([]FetchResult, error) {
	dates := calendar.Weekdays(from, to)

	c.logger.WithFields(map[string]interface{}{
		"from":  from.Format(contracts.DateLayout),
		"to":    to.Format(contracts.DateLayout),
		"dates": len(dates),
	}).Info("Starting statement collection by date")

	results, err := c.each(ctx, len(dates), cfg, func(ctx context.Context, i int) FetchResult {
		key := dates[i].Format(contracts.DateLayout)
		return c.saveStatements(ctx, key, func() ([]contracts.StatementRecord, error) {
			return c.source.StatementsByDate(ctx, dates[i])
		})
	})
	if err != nil {
		return results, err
	}

	c.logDone("Statement", results)
	return results, nil
}

// FetchStatementsByCode fetches the full disclosure history of codes.
// An empty codes list means every active listed code.
func (c *Collector) FetchStatementsByCode(ctx context.Context, codes []string, cfg Config) ([]FetchResult, error) {
	if len(codes) == 0 {
		active, err := c.sink.ActiveCodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("get active codes: %w", err)
		}
		codes = active
	}

	c.logger.WithFields(map[string]interface{}{
		"codes":   len(codes),
		"workers": cfg.workers(),
	}).Info("Starting statement collection by code")

	results, err := c.each(ctx, len(codes), cfg, func(ctx context.Context, i int) FetchResult {
		return c.saveStatements(ctx, codes[i], func() ([]contracts.StatementRecord, error) {
			return c.source.StatementsByCode(ctx, codes[i])
		})
	})
	if err != nil {
		return results, err
	}

	c.logDone("Statement", results)
	return results, nil
}

func (c *Collector) saveStatements(ctx context.Context, key string, fetch func() ([]contracts.StatementRecord, error)) FetchResult {
	res := FetchResult{Key: key}
	recs, err := fetch()
	if err != nil {
		res.Error = err
		c.logger.WithError(err).WithField("key", key).Error("Failed to fetch statements")
		return res
	}
	if len(recs) == 0 {
		return res
	}
	if err := c.sink.SaveStatements(ctx, recs); err != nil {
		res.Error = fmt.Errorf("save statements: %w", err)
		c.logger.WithError(err).WithField("key", key).Error("Failed to save statements")
		return res
	}
	res.StatementCount = len(recs)
	return res
}

// FetchListed replaces the issue master; codes absent from today's listing are marked deleted
func (c *Collector) FetchListed(ctx context.Context) (int, error) {
	rows, err := c.source.ListedInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch listed info: %w", err)
	}
	if err := c.sink.SaveListedInfo(ctx, rows); err != nil {
		return 0, fmt.Errorf("save listed info: %w", err)
	}

	c.logger.WithField("count", len(rows)).Info("Listed info updated")
	return len(rows), nil
}
