// Package calendar derives the trading calendar from observed price dates.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/kabu/internal/contracts"
)

// ErrEmptyCalendar is returned when no trading dates are known
var ErrEmptyCalendar = fmt.Errorf("trading calendar is empty: %w", contracts.ErrDataInsufficient)

// Calendar is the ascending set of distinct trading dates.
// There is no holiday table: a date is a trading date iff some symbol has a price row on it.
type Calendar struct {
	dates []time.Time
}

// New builds a calendar from dates in any order; duplicates and clock parts are dropped
func New(dates []time.Time) *Calendar {
	seen := make(map[string]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = contracts.TruncateDay(d)
		key := d.Format(contracts.DateLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return &Calendar{dates: out}
}

// Load reads the calendar for [from, to] from the price store
func Load(ctx context.Context, store contracts.PriceStore, from, to time.Time) (*Calendar, error) {
	dates, err := store.TradingCalendar(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load trading calendar: %w", err)
	}
	return New(dates), nil
}

// Len returns the number of trading dates
func (c *Calendar) Len() int {
	return len(c.dates)
}

// Dates returns a copy of the trading dates
func (c *Calendar) Dates() []time.Time {
	out := make([]time.Time, len(c.dates))
	copy(out, c.dates)
	return out
}

// First returns the earliest trading date
func (c *Calendar) First() (time.Time, error) {
	if len(c.dates) == 0 {
		return time.Time{}, ErrEmptyCalendar
	}
	return c.dates[0], nil
}

// Last returns the latest trading date
func (c *Calendar) Last() (time.Time, error) {
	if len(c.dates) == 0 {
		return time.Time{}, ErrEmptyCalendar
	}
	return c.dates[len(c.dates)-1], nil
}

// Index returns the insertion point of date: its position when present,
// otherwise the position of the next later trading date (Len() if none).
func (c *Calendar) Index(date time.Time) int {
	date = contracts.TruncateDay(date)
	return sort.Search(len(c.dates), func(i int) bool {
		return !c.dates[i].Before(date)
	})
}

// Contains reports whether date is a trading date
func (c *Calendar) Contains(date time.Time) bool {
	i := c.Index(date)
	return i < len(c.dates) && c.dates[i].Equal(contracts.TruncateDay(date))
}

// Offset returns the trading date n positions after date.
// Positions past the end clamp to the last known date; a negative result clamps to the first.
func (c *Calendar) Offset(date time.Time, n int) (time.Time, error) {
	if len(c.dates) == 0 {
		return time.Time{}, ErrEmptyCalendar
	}
	i := c.Index(date) + n
	if i >= len(c.dates) {
		i = len(c.dates) - 1
	}
	if i < 0 {
		i = 0
	}
	return c.dates[i], nil
}

// Between counts trading days from a to b, i.e. Index(b) - Index(a)
func (c *Calendar) Between(a, b time.Time) int {
	return c.Index(b) - c.Index(a)
}

// Weekdays lists Monday..Friday dates in [from, to]. Vendor requests use it
// because holidays are only known once a date comes back empty.
func Weekdays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := contracts.TruncateDay(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}
