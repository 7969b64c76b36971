package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kabu/internal/s0_data/quality"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// QualityJob checks the day's coverage once quotes and statements have landed.
// A failing gate is reported, not retried: refetching is the next night's job.
type QualityJob struct {
	gate     *quality.QualityGate
	schedule string
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// NewQualityJob creates a new quality check job
func NewQualityJob(gate *quality.QualityGate, sch strategyconfig.Schedule, log *logger.Logger) *QualityJob {
	return &QualityJob{
		gate:     gate,
		schedule: strategyconfig.Cron(sch.QualityAt, weekdays),
		loc:      sch.Location(),
		logger:   log,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *QualityJob) Name() string {
	return "quality"
}

// Schedule returns the cron schedule (weekdays, between the fetches and the signal build)
func (j *QualityJob) Schedule() string {
	return j.schedule
}

// Run executes the quality check
func (j *QualityJob) Run(ctx context.Context) error {
	snapshot, err := j.gate.Check(ctx, tradingDay(j.now(), j.loc))
	if err != nil {
		return fmt.Errorf("quality check: %w", err)
	}

	if !snapshot.Passed {
		j.logger.WithFields(map[string]interface{}{
			"quality_score": snapshot.QualityScore,
			"total_codes":   snapshot.TotalCodes,
			"missing":       len(snapshot.Missing),
		}).Warn("Data quality below threshold")
	}
	return nil
}
