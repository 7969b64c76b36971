package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kabu/internal/s0_data/collector"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/logger"
)

const (
	weekdays = "MON-FRI"
	mondays  = "MON"
)

// tradingDay is the exchange-local calendar date of t, as a UTC midnight
func tradingDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

// allFailed turns a run where every unit failed into an error so the scheduler retries it
func allFailed(what string, results []collector.FetchResult) error {
	n := collector.Failed(results)
	if n > 0 && n == len(results) {
		return fmt.Errorf("%s: all %d requests failed: %w", what, n, results[0].Error)
	}
	return nil
}

// QuotesJob pulls the last few days of daily quotes after the close
// ⭐ SSOT: quote collection schedule lives in this job only
type QuotesJob struct {
	collector    *collector.Collector
	workers      int
	lookbackDays int
	schedule     string
	loc          *time.Location
	logger       *logger.Logger
	now          func() time.Time
}

// NewQuotesJob creates a new quotes job
func NewQuotesJob(col *collector.Collector, cfg *config.Config, sch strategyconfig.Schedule, log *logger.Logger) *QuotesJob {
	return &QuotesJob{
		collector:    col,
		workers:      cfg.JQuants.Workers,
		lookbackDays: 5,
		schedule:     strategyconfig.Cron(sch.QuotesAt, weekdays),
		loc:          sch.Location(),
		logger:       log,
		now:          time.Now,
	}
}

// Name returns the job name
func (j *QuotesJob) Name() string {
	return "quotes"
}

// Schedule returns the cron schedule (weekdays after the close)
func (j *QuotesJob) Schedule() string {
	return j.schedule
}

// Run executes the quote collection
func (j *QuotesJob) Run(ctx context.Context) error {
	to := tradingDay(j.now(), j.loc)
	from := to.AddDate(0, 0, -j.lookbackDays)

	results, err := j.collector.FetchQuotes(ctx, from, to, collector.Config{Workers: j.workers})
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}
	return allFailed("fetch quotes", results)
}

// StatementsJob pulls recent disclosures by date
type StatementsJob struct {
	collector    *collector.Collector
	workers      int
	lookbackDays int
	schedule     string
	loc          *time.Location
	logger       *logger.Logger
	now          func() time.Time
}

// NewStatementsJob creates a new statements job
func NewStatementsJob(col *collector.Collector, cfg *config.Config, sch strategyconfig.Schedule, log *logger.Logger) *StatementsJob {
	return &StatementsJob{
		collector:    col,
		workers:      cfg.JQuants.Workers,
		lookbackDays: 3,
		schedule:     strategyconfig.Cron(sch.StatementsAt, weekdays),
		loc:          sch.Location(),
		logger:       log,
		now:          time.Now,
	}
}

// Name returns the job name
func (j *StatementsJob) Name() string {
	return "statements"
}

// Schedule returns the cron schedule (weekdays)
func (j *StatementsJob) Schedule() string {
	return j.schedule
}

// Run executes the statement collection
func (j *StatementsJob) Run(ctx context.Context) error {
	to := tradingDay(j.now(), j.loc)
	from := to.AddDate(0, 0, -j.lookbackDays)

	results, err := j.collector.FetchStatementsByDate(ctx, from, to, collector.Config{Workers: j.workers})
	if err != nil {
		return fmt.Errorf("fetch statements: %w", err)
	}
	return allFailed("fetch statements", results)
}

// ListedJob refreshes the issue master once a week
type ListedJob struct {
	collector *collector.Collector
	schedule  string
	logger    *logger.Logger
}

// NewListedJob creates a new listed info job
func NewListedJob(col *collector.Collector, sch strategyconfig.Schedule, log *logger.Logger) *ListedJob {
	return &ListedJob{
		collector: col,
		schedule:  strategyconfig.Cron(sch.ListedAt, mondays),
		logger:    log,
	}
}

// Name returns the job name
func (j *ListedJob) Name() string {
	return "listed"
}

// Schedule returns the cron schedule (Mondays, before the open)
func (j *ListedJob) Schedule() string {
	return j.schedule
}

// Run executes the listed info refresh
func (j *ListedJob) Run(ctx context.Context) error {
	n, err := j.collector.FetchListed(ctx)
	if err != nil {
		return err
	}
	j.logger.WithField("count", n).Info("Scheduled listed refresh completed")
	return nil
}
