package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/collector"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/internal/s0_data/quality"
	"github.com/wonny/kabu/internal/s2_signals"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/logger"
)

// stubSource serves one bar per requested date and can be switched to fail everything
type stubSource struct {
	mu    sync.Mutex
	dates []string
	down  bool
}

func (s *stubSource) hit(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates = append(s.dates, key)
	if s.down {
		return contracts.ErrUpstreamUnavailable
	}
	return nil
}

func (s *stubSource) DailyQuotesByDate(_ context.Context, d time.Time) ([]contracts.PriceBar, error) {
	if err := s.hit(d.Format(contracts.DateLayout)); err != nil {
		return nil, err
	}
	return []contracts.PriceBar{{Code: "72030", Date: d, AdjClose: 100, Volume: 1000, AdjFactor: 1}}, nil
}

func (s *stubSource) DailyQuotesByCode(context.Context, string) ([]contracts.PriceBar, error) {
	return nil, nil
}

func (s *stubSource) StatementsByDate(_ context.Context, d time.Time) ([]contracts.StatementRecord, error) {
	if err := s.hit(d.Format(contracts.DateLayout)); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *stubSource) StatementsByCode(context.Context, string) ([]contracts.StatementRecord, error) {
	return nil, nil
}

func (s *stubSource) ListedInfo(context.Context) ([]contracts.ListedInfo, error) {
	if err := s.hit("listed"); err != nil {
		return nil, err
	}
	return []contracts.ListedInfo{{Code: "72030", CompanyName: "Toyota"}}, nil
}

func testConfig() *config.Config {
	return &config.Config{JQuants: config.JQuantsConfig{Workers: 2}}
}

func fixedNow(s string) func() time.Time {
	return func() time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		return t
	}
}

func TestTradingDay(t *testing.T) {
	tokyo := strategyconfig.Defaults().Schedule.Location()

	// 16:00 UTC is already the next morning in Tokyo
	got := tradingDay(time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC), tokyo)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), got)

	got = tradingDay(time.Date(2024, 1, 8, 14, 59, 0, 0, time.UTC), tokyo)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), got)
}

func TestSchedulesFromConfig(t *testing.T) {
	sch := strategyconfig.Defaults().Schedule
	col := collector.NewCollector(&stubSource{}, memory.New(), logger.NewNop())

	assert.Equal(t, "0 0 20 * * MON-FRI", NewQuotesJob(col, testConfig(), sch, logger.NewNop()).Schedule())
	assert.Equal(t, "0 30 20 * * MON-FRI", NewStatementsJob(col, testConfig(), sch, logger.NewNop()).Schedule())
	assert.Equal(t, "0 0 6 * * MON", NewListedJob(col, sch, logger.NewNop()).Schedule())
	assert.Equal(t, "0 45 20 * * MON-FRI", NewQualityJob(nil, sch, logger.NewNop()).Schedule())
	assert.Equal(t, "0 0 21 * * MON-FRI", NewSignalsJob(nil, nil, nil, sch, logger.NewNop()).Schedule())
}

func TestQuotesJob_Run(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	store := memory.New()
	sch := strategyconfig.Defaults().Schedule

	job := NewQuotesJob(collector.NewCollector(src, store, logger.NewNop()), testConfig(), sch, logger.NewNop())
	job.now = fixedNow("2024-01-09T12:00:00+09:00")

	require.NoError(t, job.Run(ctx))
	// five calendar days back from Tuesday: Thu, Fri, Mon, Tue
	assert.ElementsMatch(t, []string{"2024-01-04", "2024-01-05", "2024-01-08", "2024-01-09"}, src.dates)

	bar, err := store.PriceAt(ctx, "72030", time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, bar)
}

func TestQuotesJob_AllFailedIsAnError(t *testing.T) {
	src := &stubSource{down: true}
	job := NewQuotesJob(collector.NewCollector(src, memory.New(), logger.NewNop()), testConfig(), strategyconfig.Defaults().Schedule, logger.NewNop())
	job.now = fixedNow("2024-01-09T12:00:00+09:00")

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrUpstreamUnavailable))
}

func TestStatementsJob_Run(t *testing.T) {
	src := &stubSource{}
	job := NewStatementsJob(collector.NewCollector(src, memory.New(), logger.NewNop()), testConfig(), strategyconfig.Defaults().Schedule, logger.NewNop())
	job.now = fixedNow("2024-01-09T21:00:00+09:00")

	require.NoError(t, job.Run(context.Background()))
	assert.ElementsMatch(t, []string{"2024-01-08", "2024-01-09"}, src.dates)
}

func TestListedJob_Run(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	job := NewListedJob(collector.NewCollector(&stubSource{}, store, logger.NewNop()), strategyconfig.Defaults().Schedule, logger.NewNop())

	require.NoError(t, job.Run(ctx))
	info, err := store.ListedInfo(ctx, "72030")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Toyota", info.CompanyName)

	down := NewListedJob(collector.NewCollector(&stubSource{down: true}, store, logger.NewNop()), strategyconfig.Defaults().Schedule, logger.NewNop())
	assert.Error(t, down.Run(ctx))
}

func TestQualityJob_RunDoesNotFailOnLowCoverage(t *testing.T) {
	gate := quality.NewQualityGate(memory.New(), quality.DefaultConfig(), logger.NewNop())
	job := NewQualityJob(gate, strategyconfig.Defaults().Schedule, logger.NewNop())
	job.now = fixedNow("2024-01-09T21:00:00+09:00")

	assert.NoError(t, job.Run(context.Background()))
}

func TestSignalsJob_RunOnEmptyStore(t *testing.T) {
	store := memory.New()
	cfg := strategyconfig.Defaults()
	builder := s2_signals.NewBuilder(cfg.Technical, store, store, store, logger.NewNop())
	screener := s2_signals.NewScreener(cfg.Fundamental, store, logger.NewNop())

	job := NewSignalsJob(builder, screener, store, cfg.Schedule, logger.NewNop())
	job.now = fixedNow("2024-01-09T21:00:00+09:00")

	assert.NoError(t, job.Run(context.Background()))
}

func TestAllFailed(t *testing.T) {
	boom := errors.New("boom")

	assert.NoError(t, allFailed("x", nil))
	assert.NoError(t, allFailed("x", []collector.FetchResult{{Key: "a"}, {Key: "b", Error: boom}}))

	err := allFailed("x", []collector.FetchResult{{Key: "a", Error: boom}, {Key: "b", Error: boom}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
