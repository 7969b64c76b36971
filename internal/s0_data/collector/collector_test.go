package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/pkg/logger"
)

func day(s string) time.Time {
	d, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeSource struct {
	mu         sync.Mutex
	byDate     map[string][]contracts.PriceBar
	byCode     map[string][]contracts.PriceBar
	statements map[string][]contracts.StatementRecord
	listed     []contracts.ListedInfo
	fail       map[string]bool
	calls      []string
}

func (f *fakeSource) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return contracts.ErrUpstreamUnavailable
	}
	return nil
}

func (f *fakeSource) DailyQuotesByDate(_ context.Context, d time.Time) ([]contracts.PriceBar, error) {
	key := d.Format(contracts.DateLayout)
	if err := f.record("quotes:" + key); err != nil {
		return nil, err
	}
	return f.byDate[key], nil
}

func (f *fakeSource) DailyQuotesByCode(_ context.Context, code string) ([]contracts.PriceBar, error) {
	if err := f.record("history:" + code); err != nil {
		return nil, err
	}
	return f.byCode[code], nil
}

func (f *fakeSource) StatementsByDate(_ context.Context, d time.Time) ([]contracts.StatementRecord, error) {
	key := d.Format(contracts.DateLayout)
	if err := f.record("statements:" + key); err != nil {
		return nil, err
	}
	return f.statements[key], nil
}

func (f *fakeSource) StatementsByCode(_ context.Context, code string) ([]contracts.StatementRecord, error) {
	if err := f.record("statements:" + code); err != nil {
		return nil, err
	}
	return f.statements[code], nil
}

func (f *fakeSource) ListedInfo(context.Context) ([]contracts.ListedInfo, error) {
	if err := f.record("listed"); err != nil {
		return nil, err
	}
	return f.listed, nil
}

func TestFetchQuotes_WeekdaysAndSplitRefetch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		byDate: map[string][]contracts.PriceBar{
			"2024-01-05": {{Code: "72030", Date: day("2024-01-05"), AdjClose: 100, AdjFactor: 1}},
			"2024-01-09": {
				{Code: "72030", Date: day("2024-01-09"), AdjClose: 101, AdjFactor: 1},
				{Code: "67580", Date: day("2024-01-09"), AdjClose: 50, AdjFactor: 0.5},
			},
		},
		byCode: map[string][]contracts.PriceBar{
			"67580": {
				{Code: "67580", Date: day("2024-01-05"), AdjClose: 49, AdjFactor: 1},
				{Code: "67580", Date: day("2024-01-09"), AdjClose: 50, AdjFactor: 0.5},
			},
		},
	}
	store := memory.New()
	c := NewCollector(src, store, logger.NewNop())

	results, err := c.FetchQuotes(ctx, day("2024-01-05"), day("2024-01-09"), Config{Workers: 2})
	require.NoError(t, err)

	// 01-05, 01-08 (holiday, empty), 01-09, then the split refetch
	require.Len(t, results, 4)
	assert.Equal(t, "2024-01-05", results[0].Key)
	assert.Equal(t, 1, results[0].PriceCount)
	assert.Equal(t, 0, results[1].PriceCount)
	assert.Equal(t, 2, results[2].PriceCount)
	assert.Equal(t, "67580", results[3].Key)
	assert.Equal(t, 0, Failed(results))

	assert.NotContains(t, src.calls, "quotes:2024-01-06")
	assert.Contains(t, src.calls, "history:67580")

	bar, err := store.PriceAt(ctx, "67580", day("2024-01-05"))
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, 49.0, bar.AdjClose)
}

func TestFetchQuotes_FailureIsRecordedNotFatal(t *testing.T) {
	src := &fakeSource{
		byDate: map[string][]contracts.PriceBar{
			"2024-01-05": {{Code: "72030", Date: day("2024-01-05"), AdjClose: 100, AdjFactor: 1}},
		},
		fail: map[string]bool{"quotes:2024-01-04": true},
	}
	c := NewCollector(src, memory.New(), logger.NewNop())

	results, err := c.FetchQuotes(context.Background(), day("2024-01-04"), day("2024-01-05"), Config{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, errors.Is(results[0].Error, contracts.ErrUpstreamUnavailable))
	assert.Equal(t, 1, Failed(results))
	assert.Equal(t, 1, results[1].PriceCount)
}

func TestFetchQuotes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(&fakeSource{}, memory.New(), logger.NewNop())
	_, err := c.FetchQuotes(ctx, day("2024-01-01"), day("2024-01-31"), Config{Workers: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchStatements(t *testing.T) {
	ctx := context.Background()
	rec := func(num, code, date string) contracts.StatementRecord {
		return contracts.StatementRecord{DisclosureNumber: num, LocalCode: code, DisclosedDate: day(date)}
	}
	src := &fakeSource{
		statements: map[string][]contracts.StatementRecord{
			"2024-02-06": {rec("1", "72030", "2024-02-06"), rec("2", "67580", "2024-02-06")},
			"72030":      {rec("0", "72030", "2023-11-01"), rec("1", "72030", "2024-02-06")},
		},
		listed: []contracts.ListedInfo{{Code: "72030", MarketCode: "0111"}, {Code: "13060", MarketCode: contracts.MarketCodeOther}},
	}
	store := memory.New()
	c := NewCollector(src, store, logger.NewNop())

	results, err := c.FetchStatementsByDate(ctx, day("2024-02-06"), day("2024-02-06"), Config{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].StatementCount)

	n, err := c.FetchListed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// no codes given: active listed codes only, funds excluded
	results, err = c.FetchStatementsByCode(ctx, nil, Config{Workers: 2})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "72030", results[0].Key)
	assert.Equal(t, 2, results[0].StatementCount)

	hist, err := store.StatementHistory(ctx, "72030")
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestFetchListed_UpstreamError(t *testing.T) {
	src := &fakeSource{fail: map[string]bool{"listed": true}}
	_, err := NewCollector(src, memory.New(), logger.NewNop()).FetchListed(context.Background())
	assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
}
