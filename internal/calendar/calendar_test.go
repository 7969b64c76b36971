package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
)

func day(s string) time.Time {
	d, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func weekdays(from, to string) []time.Time {
	var out []time.Time
	for d := day(from); !d.After(day(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func TestNew_SortsAndDeduplicates(t *testing.T) {
	cal := New([]time.Time{
		day("2024-01-05"),
		day("2024-01-04"),
		day("2024-01-05").Add(15 * time.Hour),
		day("2024-01-09"),
	})

	require.Equal(t, 3, cal.Len())
	dates := cal.Dates()
	assert.Equal(t, day("2024-01-04"), dates[0])
	assert.Equal(t, day("2024-01-09"), dates[2])
}

func TestOffset(t *testing.T) {
	cal := New(weekdays("2024-01-02", "2024-01-31"))

	tests := []struct {
		name string
		date string
		n    int
		want string
	}{
		{"zero offset", "2024-01-05", 0, "2024-01-05"},
		{"ten trading days", "2024-01-05", 10, "2024-01-19"},
		{"skips weekend", "2024-01-05", 1, "2024-01-08"},
		{"weekend uses next trading day", "2024-01-06", 0, "2024-01-08"},
		{"weekend plus one", "2024-01-06", 1, "2024-01-09"},
		{"clamps past end", "2024-01-25", 100, "2024-01-31"},
		{"date after calendar clamps", "2024-02-15", 1, "2024-01-31"},
		{"date before calendar", "2023-12-29", 0, "2024-01-02"},
		{"negative clamps to first", "2024-01-03", -5, "2024-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.Offset(day(tt.date), tt.n)
			require.NoError(t, err)
			if !got.Equal(day(tt.want)) {
				t.Errorf("Offset(%s, %d) = %s, want %s", tt.date, tt.n, got.Format(contracts.DateLayout), tt.want)
			}
		})
	}
}

func TestOffset_ClampNeverLeavesCalendar(t *testing.T) {
	cal := New(weekdays("2024-01-02", "2024-03-29"))
	last, err := cal.Last()
	require.NoError(t, err)

	for _, d := range cal.Dates() {
		remaining := cal.Len() - cal.Index(d)
		for _, n := range []int{remaining, remaining + 1, remaining * 3} {
			got, err := cal.Offset(d, n)
			require.NoError(t, err)
			assert.True(t, got.Equal(last))
			assert.True(t, cal.Contains(got))
		}
	}
}

func TestEmptyCalendar(t *testing.T) {
	cal := New(nil)

	_, err := cal.Offset(day("2024-01-05"), 1)
	assert.ErrorIs(t, err, ErrEmptyCalendar)
	assert.True(t, errors.Is(err, contracts.ErrDataInsufficient))

	_, err = cal.Last()
	assert.Error(t, err)
	_, err = cal.First()
	assert.Error(t, err)
}

func TestContainsAndBetween(t *testing.T) {
	cal := New(weekdays("2024-01-02", "2024-01-31"))

	assert.True(t, cal.Contains(day("2024-01-05")))
	assert.False(t, cal.Contains(day("2024-01-06")))
	assert.Equal(t, 10, cal.Between(day("2024-01-05"), day("2024-01-19")))
}

type stubPrices struct {
	contracts.PriceStore
	dates []time.Time
	err   error
}

func (s stubPrices) TradingCalendar(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	return s.dates, s.err
}

func TestLoad(t *testing.T) {
	cal, err := Load(context.Background(), stubPrices{dates: weekdays("2024-01-02", "2024-01-12")}, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, 9, cal.Len())

	_, err = Load(context.Background(), stubPrices{err: errors.New("db down")}, day("2024-01-01"), day("2024-01-31"))
	assert.Error(t, err)
}

func TestWeekdays(t *testing.T) {
	got := Weekdays(day("2024-01-05"), day("2024-01-09"))
	assert.Equal(t, []time.Time{day("2024-01-05"), day("2024-01-08"), day("2024-01-09")}, got)

	assert.Empty(t, Weekdays(day("2024-01-06"), day("2024-01-07")))
	assert.Empty(t, Weekdays(day("2024-01-09"), day("2024-01-08")))
}
