package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s2_signals"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// SignalsJob rebuilds technical signals for the day and screens new disclosures
type SignalsJob struct {
	builder  *s2_signals.Builder
	screener *s2_signals.Screener
	store    contracts.SignalStore
	schedule string
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// NewSignalsJob creates a new signals job
func NewSignalsJob(builder *s2_signals.Builder, screener *s2_signals.Screener, store contracts.SignalStore, sch strategyconfig.Schedule, log *logger.Logger) *SignalsJob {
	return &SignalsJob{
		builder:  builder,
		screener: screener,
		store:    store,
		schedule: strategyconfig.Cron(sch.SignalsAt, weekdays),
		loc:      sch.Location(),
		logger:   log,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *SignalsJob) Name() string {
	return "signals"
}

// Schedule returns the cron schedule (weekdays, after both fetches)
func (j *SignalsJob) Schedule() string {
	return j.schedule
}

// Run executes both signal pipelines
func (j *SignalsJob) Run(ctx context.Context) error {
	day := tradingDay(j.now(), j.loc)

	stats, err := j.builder.Build(ctx, day)
	if err != nil {
		return fmt.Errorf("build technical signals: %w", err)
	}

	// disclosures published any time today count
	result, err := j.screener.Screen(ctx, day.Add(24*time.Hour-time.Second))
	if err != nil {
		return fmt.Errorf("screen statements: %w", err)
	}
	if err := j.screener.Save(ctx, j.store, result); err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"date":        day.Format(contracts.DateLayout),
		"technical":   stats.Rows,
		"fundamental": result.Inserted,
	}).Info("Scheduled signal build completed")
	return nil
}
