package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/memory"
	"github.com/wonny/kabu/pkg/logger"
)

func d(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// staticSource returns fixed entries keyed by signal date
type staticSource map[string][]Entry

func (staticSource) Name() string { return "static" }

func (s staticSource) Signals(_ context.Context, date time.Time) ([]Entry, error) {
	return s[date.Format(contracts.DateLayout)], nil
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Signals(context.Context, time.Time) ([]Entry, error) {
	return nil, errors.New("store offline")
}

func entry(code, date string) Entry {
	return Entry{Code: code, SignalDate: d(date)}
}

// weekdays returns every Monday-Friday in [from, to]
func weekdays(from, to string) []time.Time {
	var out []time.Time
	for t := d(from); !t.After(d(to)); t = t.AddDate(0, 0, 1) {
		if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
			out = append(out, t)
		}
	}
	return out
}

// newStore seeds a filler symbol on every weekday of January 2024 so the calendar is complete
func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	var filler []contracts.PriceBar
	for _, day := range weekdays("2024-01-02", "2024-01-31") {
		filler = append(filler, contracts.PriceBar{Code: "0000", Date: day, AdjClose: 500})
	}
	require.NoError(t, s.SavePrices(context.Background(), filler))
	return s
}

// path stores closes on consecutive trading days starting at start
func path(t *testing.T, s *memory.Store, code, start string, closes ...float64) {
	t.Helper()
	days := weekdays(start, "2024-01-31")
	require.GreaterOrEqual(t, len(days), len(closes))
	bars := make([]contracts.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.PriceBar{Code: code, Date: days[i], AdjClose: c}
	}
	require.NoError(t, s.SavePrices(context.Background(), bars))
}

func strategy(src SignalSource, exit ExitRule) Strategy {
	return Strategy{
		Name:    "test",
		Side:    contracts.SideLong,
		Source:  src,
		Exit:    exit,
		Capital: 1_000_000,
	}
}

func newEngine(s *memory.Store) *Engine {
	return NewEngine(s, s, logger.NewNop())
}

func TestEngine_EndToEndFixedHorizon(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SavePrices(ctx, []contracts.PriceBar{
		{Code: "1234", Date: d("2024-01-05"), AdjClose: 1000},
		{Code: "1234", Date: d("2024-01-19"), AdjClose: 1100},
	}))
	require.NoError(t, store.SaveListedInfo(ctx, []contracts.ListedInfo{{Code: "1234", CompanyName: "Example"}}))

	src := staticSource{"2024-01-05": {entry("1234", "2024-01-05")}}
	res, err := newEngine(store).RunSingle(ctx, d("2024-01-05"), strategy(src, FixedHorizon{HoldDays: 10}))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Empty(t, res.Skips)

	tr := res.Trades[0]
	assert.Equal(t, "1234", tr.Code)
	assert.Equal(t, "Example", tr.CompanyName)
	assert.Equal(t, int64(1000), tr.Shares)
	assert.Equal(t, 1000.0, tr.EntryPrice)
	assert.Equal(t, 1100.0, tr.ExitPrice)
	assert.Equal(t, d("2024-01-19"), tr.ExitDate)
	assert.Equal(t, contracts.ExitHorizon, tr.ExitReason)
	assert.InDelta(t, 100_000.0, tr.Profit, 1e-9)
	assert.InDelta(t, 10.0, tr.ReturnPct, 1e-9)
	assert.Equal(t, 14, tr.HoldingDays)
}

func TestEngine_StopBeatsDeeperLaterLoss(t *testing.T) {
	store := newStore(t)
	// day 0 entry at 100; 94 on day 3 crosses the 95 stop before 90 on day 7
	path(t, store, "1111", "2024-01-02", 100, 99, 97, 94, 96, 96, 96, 90, 92, 93, 95, 99)

	src := staticSource{"2024-01-02": {entry("1111", "2024-01-02")}}
	res, err := newEngine(store).RunSingle(context.Background(), d("2024-01-02"),
		strategy(src, StopOrHorizon{HoldDays: 10, StopLossPct: 0.05}))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, 94.0, tr.ExitPrice)
	assert.Equal(t, d("2024-01-05"), tr.ExitDate)
	assert.Equal(t, contracts.ExitStop, tr.ExitReason)
}

func TestEngine_StopPriceIsInclusive(t *testing.T) {
	store := newStore(t)
	path(t, store, "1111", "2024-01-02", 100, 96, 95, 80)

	src := staticSource{"2024-01-02": {entry("1111", "2024-01-02")}}
	res, err := newEngine(store).RunSingle(context.Background(), d("2024-01-02"),
		strategy(src, StopOrHorizon{HoldDays: 10, StopLossPct: 0.05}))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 95.0, res.Trades[0].ExitPrice)
}

func TestEngine_HorizonWithoutStop(t *testing.T) {
	store := newStore(t)
	path(t, store, "1111", "2024-01-02", 100, 101, 102, 103, 104, 105)

	src := staticSource{"2024-01-02": {entry("1111", "2024-01-02")}}
	res, err := newEngine(store).RunSingle(context.Background(), d("2024-01-02"),
		strategy(src, StopOrHorizon{HoldDays: 3, StopLossPct: 0.05}))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 103.0, res.Trades[0].ExitPrice)
	assert.Equal(t, contracts.ExitHorizon, res.Trades[0].ExitReason)
}

func TestEngine_SoftCloseUsesLastFutureRow(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	path(t, store, "1111", "2024-01-02", 100, 101, 99, 98)

	src := staticSource{"2024-01-02": {entry("1111", "2024-01-02")}}
	res, err := newEngine(store).RunSingle(ctx, d("2024-01-02"),
		strategy(src, StopOrHorizon{HoldDays: 10, StopLossPct: 0.05}))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	future, err := store.PriceHistory(ctx, "1111", d("2024-01-03"), d("2024-01-31"))
	require.NoError(t, err)
	last := future[len(future)-1]

	tr := res.Trades[0]
	assert.Equal(t, contracts.ExitSoftClose, tr.ExitReason)
	assert.Equal(t, last.Date, tr.ExitDate)
	assert.Equal(t, last.AdjClose, tr.ExitPrice)
}

func TestEngine_HaltOnHorizonDayExitsOnNextBar(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	var bars []contracts.PriceBar
	for _, day := range weekdays("2024-01-05", "2024-01-31") {
		switch {
		case day.Equal(d("2024-01-19")):
			continue // halted on the horizon day
		case day.After(d("2024-01-19")):
			bars = append(bars, contracts.PriceBar{Code: "1234", Date: day, AdjClose: 1200})
		default:
			bars = append(bars, contracts.PriceBar{Code: "1234", Date: day, AdjClose: 1000})
		}
	}
	require.NoError(t, store.SavePrices(ctx, bars))

	src := staticSource{"2024-01-05": {entry("1234", "2024-01-05")}}
	res, err := newEngine(store).RunSingle(ctx, d("2024-01-05"),
		strategy(src, StopOrHorizon{HoldDays: 10, StopLossPct: 0.05}))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, d("2024-01-22"), tr.ExitDate)
	assert.Equal(t, 1200.0, tr.ExitPrice)
	assert.Equal(t, contracts.ExitHorizon, tr.ExitReason)
}

func TestEngine_ShortSide(t *testing.T) {
	store := newStore(t)
	// short stop sits at 105: 104 is tolerated, 106 triggers
	path(t, store, "2222", "2024-01-02", 100, 104, 106, 90)

	src := staticSource{"2024-01-02": {entry("2222", "2024-01-02")}}
	s := strategy(src, StopOrHorizon{HoldDays: 10, StopLossPct: 0.05})
	s.Side = contracts.SideShort

	res, err := newEngine(store).RunSingle(context.Background(), d("2024-01-02"), s)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, contracts.SideShort, tr.Side)
	assert.Equal(t, 106.0, tr.ExitPrice)
	assert.Equal(t, contracts.ExitStop, tr.ExitReason)
	assert.InDelta(t, -60_000.0, tr.Profit, 1e-9)
	assert.InDelta(t, -6.0, tr.ReturnPct, 1e-9)
}

func TestSettle_LongShortSymmetry(t *testing.T) {
	for _, tc := range []struct{ entry, exit float64 }{
		{1000, 1100}, {1000, 900}, {123.4, 567.8}, {250, 250},
	} {
		long := Settle(contracts.SideLong, 37, tc.entry, tc.exit)
		short := Settle(contracts.SideShort, 37, tc.entry, tc.exit)
		assert.Equal(t, long.Profit, -short.Profit)
		assert.Equal(t, long.ReturnPct, -short.ReturnPct)
		assert.Equal(t, long.Invested, short.Invested)
	}
}

func TestShares(t *testing.T) {
	assert.Equal(t, int64(1000), Shares(1_000_000, 1000))
	assert.Equal(t, int64(333333), Shares(1_000_000, 3))
	assert.Equal(t, int64(3), Shares(1_000_000, 333_333.33))
	assert.Equal(t, int64(0), Shares(100, 101))
	assert.Equal(t, int64(0), Shares(100, 0))
}

func TestEngine_Skips(t *testing.T) {
	store := newStore(t)
	path(t, store, "1000", "2024-01-02", 2_000_000, 2_100_000) // too expensive
	path(t, store, "2000", "2024-01-30", 100)                  // no rows after entry
	// "3000" has no price at all

	src := staticSource{
		"2024-01-02": {entry("1000", "2024-01-02"), entry("3000", "2024-01-02")},
		"2024-01-30": {entry("2000", "2024-01-30")},
	}
	res, err := newEngine(store).RunRange(context.Background(), d("2024-01-01"), d("2024-01-31"),
		strategy(src, FixedHorizon{HoldDays: 5}))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)

	reasons := map[string]contracts.SkipReason{}
	for _, s := range res.Skips {
		reasons[s.Code] = s.Reason
	}
	assert.Equal(t, map[string]contracts.SkipReason{
		"1000": contracts.SkipInsufficientCapital,
		"2000": contracts.SkipNoExitData,
		"3000": contracts.SkipNoEntryPrice,
	}, reasons)
}

func TestEngine_EntryOffset(t *testing.T) {
	store := newStore(t)
	// signal on Friday the 5th, entry one trading day later on Monday the 8th
	path(t, store, "1111", "2024-01-05", 50, 100, 110, 120)

	src := staticSource{"2024-01-05": {entry("1111", "2024-01-05")}}
	s := strategy(src, FixedHorizon{HoldDays: 2})
	s.EntryOffsetDays = 1

	res, err := newEngine(store).RunSingle(context.Background(), d("2024-01-05"), s)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, d("2024-01-08"), res.Trades[0].EntryDate)
	assert.Equal(t, 100.0, res.Trades[0].EntryPrice)
	assert.Equal(t, 120.0, res.Trades[0].ExitPrice)
	assert.Equal(t, d("2024-01-05"), res.Trades[0].SignalDate)
}

func TestEngine_RangeMatchesSingle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	path(t, store, "1234", "2024-01-05", 1000, 1010, 1020, 1030, 1040, 1050)
	path(t, store, "1111", "2024-01-05", 200, 190, 180, 170, 160, 150)

	src := staticSource{"2024-01-05": {entry("1234", "2024-01-05"), entry("1111", "2024-01-05")}}
	s := strategy(src, FixedHorizon{HoldDays: 3})
	e := newEngine(store)

	single, err := e.RunSingle(ctx, d("2024-01-05"), s)
	require.NoError(t, err)
	ranged, err := e.RunRange(ctx, d("2024-01-01"), d("2024-01-10"), s)
	require.NoError(t, err)

	require.Len(t, ranged.Trades, 2)
	assert.Equal(t, single.Trades, ranged.Trades)
	assert.Equal(t, "1111", ranged.Trades[0].Code, "ordered by code within a date")

	s.Workers = 4
	parallel, err := e.RunRange(ctx, d("2024-01-01"), d("2024-01-10"), s)
	require.NoError(t, err)
	assert.Equal(t, ranged.Trades, parallel.Trades)
	assert.NotEqual(t, ranged.RunID, parallel.RunID)

	var streamed []contracts.Trade
	skips, err := e.Stream(ctx, d("2024-01-01"), d("2024-01-10"), s, func(tr contracts.Trade) error {
		streamed = append(streamed, tr)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ranged.Trades, streamed)
	assert.Equal(t, ranged.Skips, skips)
}

func TestEngine_EmptyRangeIsNotAnError(t *testing.T) {
	res, err := newEngine(newStore(t)).RunRange(context.Background(), d("2024-01-01"), d("2024-01-10"),
		strategy(staticSource{}, FixedHorizon{HoldDays: 3}))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.NotNil(t, res.Trades)
}

func TestEngine_SourceFailureAborts(t *testing.T) {
	_, err := newEngine(newStore(t)).RunSingle(context.Background(), d("2024-01-05"),
		strategy(brokenSource{}, FixedHorizon{HoldDays: 3}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	e := newEngine(newStore(t))
	ok := strategy(staticSource{}, FixedHorizon{HoldDays: 3})

	tests := []struct {
		name  string
		mut   func(*Strategy)
		from  string
		to    string
		field string
	}{
		{"hold days", func(s *Strategy) { s.Exit = FixedHorizon{HoldDays: 0} }, "2024-01-05", "2024-01-05", "hold_days"},
		{"capital", func(s *Strategy) { s.Capital = 0 }, "2024-01-05", "2024-01-05", "capital"},
		{"stop too large", func(s *Strategy) { s.Exit = StopOrHorizon{HoldDays: 3, StopLossPct: 1} }, "2024-01-05", "2024-01-05", "stop_loss_pct"},
		{"negative stop", func(s *Strategy) { s.Exit = StopOrHorizon{HoldDays: 3, StopLossPct: -0.1} }, "2024-01-05", "2024-01-05", "stop_loss_pct"},
		{"inverted range", func(s *Strategy) {}, "2024-01-10", "2024-01-05", "from"},
		{"missing source", func(s *Strategy) { s.Source = nil }, "2024-01-05", "2024-01-05", "source"},
		{"bad side", func(s *Strategy) { s.Side = "flat" }, "2024-01-05", "2024-01-05", "side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mut(&s)
			_, err := e.RunRange(context.Background(), d(tt.from), d(tt.to), s)
			require.Error(t, err)

			var ce *contracts.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestStopPrice(t *testing.T) {
	assert.Equal(t, 95.0, StopPrice(contracts.SideLong, 100, 0.05))
	assert.Equal(t, 105.0, StopPrice(contracts.SideShort, 100, 0.05))
	assert.Equal(t, 100.0, StopPrice(contracts.SideLong, 100, 0))
}
